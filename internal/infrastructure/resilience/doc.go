/*
Package resilience provides a circuit breaker for outbound calls.

The breaker has three states:

	Closed --[Trip]-> Open --[Cooldown]-> Half-Open --[Probes successes]-> Closed
	                                          |
	                                      [failure]
	                                          v
	                                         Open

Usage:

	breaker := resilience.New("widget-cdn", resilience.Settings{
		Probes:   1,
		Cooldown: 10 * time.Second,
		Trip:     resilience.ConsecutiveFailures(3),
	})

	body, err := resilience.Do(ctx, breaker, func(ctx context.Context) ([]byte, error) {
		return fetch(ctx, url)
	})
*/
package resilience
