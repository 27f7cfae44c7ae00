// Package services provides the sample service catalog served by dispatchd.
//
// The catalog has two registries processed in order:
//
//	auth  simple_auth(username)      -> username
//	      token_auth(token)          -> user owning token, or AuthError
//	      system_auth()              -> OS user running the process
//	      <default>                  -> nil (anonymous)
//	main  whoami(all_caps=false)     -> auth result, or AuthError when anonymous
//	      owner_id()                 -> SHA256 hex of the auth result
//	      echo(message, repeat=1)    -> message repeated; repeat in [1, 10]
//	      fail()                     -> non-domain error
//
// Use NewCatalog to build it, then hand Stages() to dispatch.NewProcessor.
package services
