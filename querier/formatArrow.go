package querier

import (
	"math"
	"net/http"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/gigapi/gigapi-zoomview/core"
)

var secondsUTC = &arrow.TimestampType{Unit: arrow.Second, TimeZone: "UTC"}

// bucketSchema is shared by the arrow HTTP format and the Flight stream
var bucketSchema = arrow.NewSchema([]arrow.Field{
	{Name: "statistic", Type: arrow.BinaryTypes.String},
	{Name: "bucket_start", Type: secondsUTC},
	{Name: "bucket_end", Type: secondsUTC},
	{Name: "count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "v1", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "v2", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// bucketRecord converts one statistic into a record. The caller releases it.
func bucketRecord(mem memory.Allocator, set core.BucketSet) arrow.Record {
	b := array.NewRecordBuilder(mem, bucketSchema)
	defer b.Release()

	stat := b.Field(0).(*array.StringBuilder)
	start := b.Field(1).(*array.TimestampBuilder)
	end := b.Field(2).(*array.TimestampBuilder)
	count := b.Field(3).(*array.Int64Builder)
	v1 := b.Field(4).(*array.Float64Builder)
	v2 := b.Field(5).(*array.Float64Builder)

	for _, bucket := range set.Buckets {
		stat.Append(string(set.Statistic))
		start.Append(arrow.Timestamp(bucket.Start.Unix()))
		end.Append(arrow.Timestamp(bucket.End.Unix()))
		count.Append(bucket.Count)
		appendValue(v1, bucket.V1)
		appendValue(v2, bucket.V2)
	}
	return b.NewRecord()
}

func appendValue(b *array.Float64Builder, v float64) {
	if math.IsNaN(v) {
		b.AppendNull()
		return
	}
	b.Append(v)
}

type recordWriter interface {
	Write(rec arrow.Record) error
}

func writeRecords(w recordWriter, mem memory.Allocator, sets []core.BucketSet) (int64, error) {
	var rows int64
	for _, set := range sets {
		rec := bucketRecord(mem, set)
		err := w.Write(rec)
		rows += rec.NumRows()
		rec.Release()
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// ArrowFormatter writes an Arrow IPC stream, one record batch per statistic
func ArrowFormatter(res *core.ViewResult, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
	writer := ipc.NewWriter(w, ipc.WithSchema(bucketSchema))
	if _, err := writeRecords(writer, memory.DefaultAllocator, res.Sets); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}
