// Package schedule holds the declarative side of schedsync: the desired
// schedule Spec, its lifecycle State, the compact interval syntax and the
// Builder that turns specs into remote-native gateway schedules.
//
// Nothing in this package talks to the network. Name resolution is delegated
// to an injected Resolver.
package schedule
