/*
Package resilience provides circuit breakers for outbound calls.

# Overview

Widgets may hammer a failing remote host through the network capability. A
Breaker fails those calls fast once a host keeps failing, and a Group keeps
one breaker per host so a single bad domain never blocks the rest.

# Usage

	hosts := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	err := hosts.Get("api.example.com").Do(ctx, func(ctx context.Context) error {
		return fetch(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
