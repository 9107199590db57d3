package tigge

import "fmt"

// Fixed request fields. These form a compatibility contract with the
// archive: changing any of them changes which data comes back.
const (
	requestClass   = "ti"
	requestType    = "cf"
	requestDataset = "tigge"
	requestExpver  = "prod"
	requestGrid    = "0.5/0.5"
	requestLevtype = "sfc"
	requestOrigin  = "kwbc"
	requestFormat  = "netcdf"

	// Forecast lead times: 0 to 240 hours in 6-hour increments.
	requestSteps = "0/6/12/18/24/30/36/42/48/54/60/66/72/78/84/90/96/102/" +
		"108/114/120/126/132/138/144/150/156/162/168/174/180/186/192/198/" +
		"204/210/216/222/228/234/240"

	// North/West/South/East bounding box covering South America.
	requestArea = "14/-82/-57/-31"
)

// Request is a fully-formed MARS retrieval descriptor. The field names and
// json tags match the keys the MARS API expects.
type Request struct {
	Class   string `json:"class"`
	Type    string `json:"type"`
	Dataset string `json:"dataset"`
	Expver  string `json:"expver"`
	Grid    string `json:"grid"`
	Levtype string `json:"levtype"`
	Origin  string `json:"origin"`
	Format  string `json:"format"`
	Step    string `json:"step"`
	Area    string `json:"area"`
	Date    string `json:"date"`
	Param   string `json:"param"`
	Time    string `json:"time"`
	Target  string `json:"target"`
}

// Request builds the MARS retrieval descriptor for the task, naming target
// as the output object.
func (t Task) Request(target string) Request {
	return Request{
		Class:   requestClass,
		Type:    requestType,
		Dataset: requestDataset,
		Expver:  requestExpver,
		Grid:    requestGrid,
		Levtype: requestLevtype,
		Origin:  requestOrigin,
		Format:  requestFormat,
		Step:    requestSteps,
		Area:    requestArea,
		Date:    t.Date.Format("2006-01-02"),
		Param:   t.Variables.Params(),
		Time:    fmt.Sprintf("%02d:00:00", t.Hour),
		Target:  target,
	}
}
