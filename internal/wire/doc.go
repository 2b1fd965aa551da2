// Package wire defines the boundary to the WhatsApp network.
//
// The bridge never speaks the Noise/Signal wire protocol itself. A protocol
// engine owns the cryptography; this package defines the Client and Dialer
// interfaces the rest of the bridge is written against, the typed events a
// live connection emits, and the credential/key-material structures that get
// persisted between runs.
//
// Two Dialer implementations ship in-tree:
//
//   - SocketDialer: the production adapter, JSON frames over a websocket to
//     the protocol engine endpoint.
//   - MockDialer/MockClient: scripted doubles for tests.
//
// Binary fields in Credentials use the Binary type, whose JSON form is
// {"type":"Buffer","data":"<base64>"} so that raw byte sequences survive the
// textual session store exactly.
package wire
