// Package broker dispatches widget capability requests to providers.
//
// Every request goes through the same pipeline: resolve the capability,
// validate its arguments (finite numbers, then the capability's JSON schema),
// authorize it with the permission broker (declared, granted, rate budget),
// and only then execute the provider under a bounded timeout. Invalid input
// never reaches the permission broker; a denied or throttled call never
// reaches the provider.
//
// Results are always returned as a types.Response envelope:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": {"kind": "PermissionDenied", "message": "..."}}
package broker
