package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

const metadataPrefix = "caseline."

// rowSchema returns the Arrow schema for timeline rows.
// Durations and offsets are microseconds.
func rowSchema(meta Metadata) *arrow.Schema {
	pairs := meta.pairs()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	metaKeys := make([]string, 0, len(keys))
	metaValues := make([]string, 0, len(keys))
	for _, k := range keys {
		metaKeys = append(metaKeys, metadataPrefix+k)
		metaValues = append(metaValues, pairs[k])
	}
	md := arrow.NewMetadata(metaKeys, metaValues)

	return arrow.NewSchema([]arrow.Field{
		{Name: "case_id", Type: arrow.BinaryTypes.String},
		{Name: "activity", Type: arrow.BinaryTypes.String},
		{Name: "instance", Type: arrow.PrimitiveTypes.Int32},
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "start", Type: arrow.FixedWidthTypes.Timestamp_us},
		{Name: "duration_us", Type: arrow.PrimitiveTypes.Int64},
		{Name: "offset_us", Type: arrow.PrimitiveTypes.Int64},
	}, &md)
}

// WriteParquet writes rows as a single record batch.
func WriteParquet(w io.Writer, rows []Row, meta Metadata, compression CompressionType) error {
	allocator := memory.NewGoAllocator()
	schema := rowSchema(meta)

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compression.codec()),
		parquet.WithDictionaryDefault(true),
		parquet.WithCreatedBy("caseline"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, w, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	b := array.NewRecordBuilder(allocator, schema)
	defer b.Release()

	caseIDs := b.Field(0).(*array.StringBuilder)
	activities := b.Field(1).(*array.StringBuilder)
	instances := b.Field(2).(*array.Int32Builder)
	kinds := b.Field(3).(*array.StringBuilder)
	starts := b.Field(4).(*array.TimestampBuilder)
	durations := b.Field(5).(*array.Int64Builder)
	offsets := b.Field(6).(*array.Int64Builder)

	for _, r := range rows {
		caseIDs.Append(r.CaseID)
		activities.Append(r.Activity)
		instances.Append(int32(r.Instance))
		kinds.Append(string(r.Kind))
		starts.Append(arrow.Timestamp(r.Start.UnixMicro()))
		durations.Append(r.Duration.Microseconds())
		offsets.Append(r.Offset.Microseconds())
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
