// Package redisstore implements the quantumchat Directory, EnvelopeStore and
// Relay on top of Redis.
//
// Layout, with the default "qchat" prefix:
//
//	qchat:pubkeys                  hash   username -> base64 public key
//	qchat:conv:<n>:<lo>:<m>:<hi>   list   JSON envelopes between a sorted pair
//	qchat:inbox:<user>             list   JSON envelopes addressed to user
//	qchat:relay:<user>             pubsub JSON envelopes pushed to online users
//
// In conversation keys n and m are the byte lengths of the two names.
//
// Lists are the source of truth; the relay channel only speeds up delivery.
package redisstore
