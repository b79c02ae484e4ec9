// Package message defines the types exchanged between the sink components.
//
// # Envelopes
//
// Every input line is decoded into an Envelope. RECORD envelopes carry a
// stream name and a record payload, STATE envelopes carry an opaque
// checkpoint value:
//
//	{"type":"RECORD","stream":"orders","record":{"_id":"507f1f77bcf86cd799439011"}}
//	{"type":"STATE","value":{"bookmarks":{"orders":{"replication_method":"FULL_TABLE"}}}}
//
// # Partitions
//
// Records are grouped by Partition, a stream name plus a calendar date:
//
//	p := message.Partition{
//	    Stream: "orders",
//	    Date:   message.Date{Year: 2012, Month: time.October, Day: 17},
//	}
//	key := p.Key() // "orders::2012-10-17"
//
// The "::" separator is reserved and must not appear inside stream names.
//
// # Batches
//
// A Batch is the ordered content of one partition at flush time. Lines keep
// the order in which they were read from the input.
package message
