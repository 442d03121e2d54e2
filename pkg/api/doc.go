// Package api serves the grouping pipeline over HTTP.
//
// # Endpoints
//
//	GET  /healthz                        liveness
//	GET  /metrics                        Prometheus metrics
//	GET  /v1/datasets                    registered dataset names
//	POST /v1/datasets/{name}             upload a CSV dataset (frame,id,x,y)
//	POST /v1/datasets/{name}/orderings   start a run with JSON pipeline options
//	GET  /v1/runs/{id}                   run status and result
//
// Runs execute in the background and are polled through /v1/runs/{id};
// with ?wait=true the orderings endpoint answers once the run has
// finished. All state lives in the [session.Session] given to [New].
//
// Errors are JSON objects of the form
//
//	{"error": {"code": "INVALID_DATASET", "message": "..."}, "request_id": "..."}
//
// with the HTTP status derived from the error code.
package api
