// Package encoder provides batch encoding to object file formats.
//
// # Supported Formats
//
//   - JSON lines (default): the raw input lines, byte for byte
//   - Parquet: columnar rows of stream, record, line_number and ingested_at
//   - Avro: Object Container File with the same fields
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(message.FormatJSON, "")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    return err
//	}
//
//	stats, err := enc.Encode(w, batch)
//
// # Compression Options
//
//	Parquet: "snappy", "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "null", "deflate", "snappy"
//
// JSON lines objects are never compressed so the keys stay "<name>.json".
//
// # Thread Safety
//
// Encoder instances hold no per-call state and are safe for concurrent use.
package encoder
