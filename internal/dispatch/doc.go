// Package dispatch implements the multi-registry request processor.
//
// # Overview
//
// A request addresses several named service registries at once. The
// Processor walks an ordered list of registries, invokes exactly one service
// per registry and folds every result into a per-request Context that later
// registries can read:
//
//	auth := dispatch.NewRegistry()
//	auth.MustRegister("simple_auth", dispatch.NewSpec(simpleAuth, dispatch.Required("username")))
//
//	main := dispatch.NewRegistry()
//	main.MustRegister("whoami", dispatch.Typed(whoami))
//
//	p, err := dispatch.NewProcessor([]dispatch.Stage{
//	    {Name: "auth", Registry: auth},
//	    {Name: "main", Registry: main},
//	})
//	resp, err := p.Process(ctx, dispatch.Request{
//	    "auth": {Service: "simple_auth", Args: dispatch.Args{"username": "alex"}},
//	    "main": {Service: "whoami", Args: dispatch.Args{"all_caps": true}},
//	})
//
// Stage order is load-bearing: a service may only read context entries of
// registries that ran before it. Only the last registry's result is
// returned in the Response.
//
// # Errors
//
// Errors implementing DomainError (Kind plus structured Details) stop the
// request and become {error, details} responses. Every other error, panics
// included, is returned to the caller of Process unless catch-all is
// enabled, in which case the response is the opaque GenericInternalError
// and the original error is only logged.
//
// # Concurrency Safety
//
// Process is synchronous and creates a fresh Context per call. Calling it
// concurrently for independent requests is safe only when the registered
// services hold no shared mutable state; the package does not enforce this.
package dispatch
