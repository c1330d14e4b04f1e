// Package todolist orchestrates the to-do list on top of the store, the
// remote source and the cache flag.
//
// The first load (or any load that ignores the cache) fetches the remote
// list, seeds creation times, replaces the store contents with it and sets
// the hasToDoListSaved flag. Later loads read the store, newest first.
//
// Every Service operation runs on the service's own serial queue and reports
// through a task completion. Cancelled operations complete with a nil result;
// callers treat that as "nothing to update".
package todolist
