// Package http implements the HTTP handlers of sales-web. Handlers stay
// thin: they parse and validate the request, call a service and render the
// result.
//
// # Endpoints
//
//	POST /api/v1/analyses                         upload a file and run the pipeline
//	GET  /api/v1/analyses                         list runs (page, page_size, status)
//	GET  /api/v1/analyses/{id}                    one run with artifact links
//	GET  /api/v1/analyses/{id}/artifacts/{name}   download an artifact
//	GET  /api/health, /api/health/ready, /api/health/live
//	GET  /api/version
//
// The analysis handlers carry swag annotations; the generated document
// lives in the docs package and is served under /swagger/.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Pipeline
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Error Handling
//
// All errors are rendered as RFC 7807 Problem Details by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/data/empty-after-cleaning",
//	    "title": "No Usable Rows",
//	    "status": 422,
//	    "detail": "...",
//	    "instance": "/api/v1/analyses",
//	    "trace_id": "...",
//	    "run_id": "..."
//	}
//
// A failed analysis still has a run; its ID and the run itself are added
// to the problem so clients can inspect the stage results.
//
// # Testing
//
// Handlers are tested with httptest and a mocked service.
package http
