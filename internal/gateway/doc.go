// Package gateway abstracts the remote scheduling service.
//
// The reconciliation engine only depends on the Gateway interface and the
// remote-native Schedule value defined here. Implementations:
//   - Temporal: go.temporal.io/sdk schedule client adapter
//   - Throttled: rate limiting + retry middleware around any Gateway
//   - gatewaytest.Memory: in-memory fake for tests
package gateway
