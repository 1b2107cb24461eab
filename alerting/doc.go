// Package alerting delivers high-severity threats to subscribers over an
// in-process Watermill pub/sub.
//
// The Publisher implements security.Alerter. Each threat is published as a
// JSON message whose UUID is the threat ID, with the type and level copied
// into the message metadata so consumers can route without decoding.
//
// Publishing never blocks the detector: the underlying gochannel buffers
// messages and does not wait for acknowledgement.
package alerting
