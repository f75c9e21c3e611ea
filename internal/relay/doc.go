// Package relay carries progress updates across process and machine
// boundaries over Google Cloud Pub/Sub. Remote workers publish tagged
// updates through relay handles that mirror the in-process multibar
// API; a Receiver subscribes on the coordinator side, validates each
// message at the trust boundary, and forwards it into the local
// coordinator. Per-worker ordering keys preserve the channel contract
// that one producer's updates are applied in the order it sent them.
package relay
