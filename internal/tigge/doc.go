// Package tigge describes retrievals from the TIGGE dataset on the ECMWF
// MARS archive for the Wildfire project.
//
// Everything here is a pure value: tasks, credentials, the fixed set of
// permanently-missing dates and the mapping from a task to its target
// filename and MARS request descriptor. There is no I/O.
//
// # Usage
//
//	tasks := tigge.Tasks(start, end, tigge.Full)
//	for _, task := range tasks {
//	    req := task.Request(task.Filename())
//	    // hand req to the retrieval client
//	}
package tigge
