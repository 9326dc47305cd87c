// Package websocket provides the WebSocket transport for the collaboration
// hub.
//
// Architecture:
//
// The package uses a hub-and-spoke model. The Hub owns the live connection
// set, grouped by the session token each connection supplied in its connect
// URL, and runs a single event loop over register/unregister/broadcast
// channels so the live set is only ever touched from one goroutine. Each
// connection gets a read pump that feeds raw frames to the protocol
// dispatcher and a write pump that drains its send queue.
//
// The Hub is the dispatcher's broadcast relay: fan-outs are serialized once
// and delivered to every other connection in the same session with a
// non-blocking send. A receiver whose queue is full is dropped from the
// live set; a slow peer never delays the sender.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//	hub.AttachDispatcher(dispatcher)
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection lifecycle:
//
//  1. Client connects with ?session=<token>
//  2. Connection registered with the hub under that token
//  3. Frames flow through the dispatcher; replies and fan-outs go out
//  4. Disconnect triggers the dispatcher teardown hook and live-set removal
package websocket
