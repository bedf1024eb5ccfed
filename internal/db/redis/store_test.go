package redis

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/hwfinder/internal/db"
)

// --- client.go ---

func TestPing_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWaitForReady_Immediate(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).
		AnyTimes()

	err := s.WaitForReady(context.Background(), 150*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- rows.go ---

func TestHSetMulti_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"name": "Knob"}},
		{Key: "k2", Fields: map[string]string{"name": "Pull"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialError(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(errors.New("OOM")),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"a": "1"}},
		{Key: "k2", Fields: map[string]string{"a": "2"}},
	})
	if !isDBError(err) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s := NewStoreWithClient(nil) // client not called
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PipelinesInChunks(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1))}).
		Times(2)

	items := make([]db.HashSetItem, hsetChunk+1)
	for i := range items {
		items[i] = db.HashSetItem{Key: "p:" + strconv.Itoa(i), Fields: map[string]string{"name": "row"}}
	}
	if err := s.HSetMulti(context.Background(), items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelMulti(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("UNLINK", "k1", "k2")).
		Return(mock.Result(mock.RedisInt64(2)))

	if err := s.DelMulti(context.Background(), []string{"k1", "k2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.DelMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error on empty keys: %v", err)
	}
}

func TestScan_MultiPage(t *testing.T) {
	s, c := newMockStore(t)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42),
					mock.RedisArray(mock.RedisString("key1")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("key2")),
			))
		}).Times(2)

	keys, err := s.Scan(context.Background(), "prefix:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(keys, []string{"key1", "key2"}) {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

// --- kv.go ---

func TestGet_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_NetworkError(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := s.Get(context.Background(), "mykey")
	if errors.Is(err, db.ErrKeyNotFound) || !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestPut_TTLVariants(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want []string
	}{
		{"no expiry", 0, []string{"SET", "mykey", "myvalue"}},
		{"seconds", time.Minute, []string{"SET", "mykey", "myvalue", "EX", "60"}},
		{"milliseconds", 1500 * time.Millisecond, []string{"SET", "mykey", "myvalue", "PX", "1500"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, c := newMockStore(t)

			c.EXPECT().
				Do(gomock.Any(), mock.Match(tc.want...)).
				Return(mock.Result(mock.RedisString("OK")))

			if err := s.Put(context.Background(), "mykey", []byte("myvalue"), tc.ttl); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPut_ErrorCarriesKey(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("OOM command not allowed")))

	err := s.Put(context.Background(), "mykey", []byte("v"), 0)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSet || dbErr.Key != "mykey" {
		t.Fatalf("expected db.Error for SET mykey, got %v", err)
	}
}

// --- index.go ---

func catalogIndex(t *testing.T) *db.IndexDefinition {
	t.Helper()
	def, err := db.NewIndexDefinition("test:idx", []string{"test:"},
		db.TextField("name"),
		db.HNSWField("embedding", "vector", 4, db.DistanceCosine, db.HNSWParams{M: 16, EFConstruct: 200}),
	)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return def
}

func TestCreateIndex_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.CREATE", "test:idx", "ON", "HASH", "PREFIX", "1", "test:", "SCHEMA",
			"name", "TEXT",
			"embedding", "AS", "vector", "VECTOR", "HNSW", "10",
			"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
		)).
		Return(mock.Result(mock.RedisString("OK")))

	if err := s.CreateIndex(context.Background(), catalogIndex(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	err := s.CreateIndex(context.Background(), catalogIndex(t))
	if !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Invalid(t *testing.T) {
	s := NewStoreWithClient(nil)
	if err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "idx"}); err == nil {
		t.Fatal("expected validation error")
	}
	if err := s.CreateIndex(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil definition")
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "test:idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	err := s.DropIndex(context.Background(), "test:idx")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	s, c := newMockStore(t)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "present")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("present")))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "absent")).
			Return(mock.Result(mock.RedisError("absent: no such index"))),
	)

	if ok, err := s.IndexExists(context.Background(), "present"); err != nil || !ok {
		t.Errorf("IndexExists(present) = %v, %v", ok, err)
	}
	if ok, err := s.IndexExists(context.Background(), "absent"); err != nil || ok {
		t.Errorf("IndexExists(absent) = %v, %v", ok, err)
	}
}

// --- search.go ---

func TestSearchKNN_Success(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "idx" && cmd[2] == "*=>[KNN 2 @vector $BLOB]" &&
				slices.Contains(cmd, "SORTBY") && slices.Contains(cmd, "__vector_score")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("p:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
				mock.RedisString("name"), mock.RedisString("Brass Knob"),
			),
			mock.RedisString("p:2"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("1.6"),
				mock.RedisString("name"), mock.RedisString("Steel Hinge"),
			),
		)))

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{0.1, 0.2},
		K:            2,
		ReturnFields: []string{"name"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	first := result.Entries[0]
	if first.Key != "p:1" || first.Fields["name"] != "Brass Knob" {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.Score < 0.89 || first.Score > 0.91 {
		t.Errorf("expected score ~0.9, got %f", first.Score)
	}
	if _, ok := first.Fields["__vector_score"]; ok {
		t.Error("__vector_score should be removed from fields")
	}
	if result.Entries[1].Score != 0 {
		t.Errorf("distance above 1 should clamp to 0, got %f", result.Entries[1].Score)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_UnknownIndex(t *testing.T) {
	s, c := newMockStore(t)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}, K: 10})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 10}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 10}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{0.1}}); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestVectorToBytes(t *testing.T) {
	if b := vectorToBytes([]float32{1.0, 2.0}); len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestTranslate(t *testing.T) {
	nilReply := mock.Result(mock.RedisNil()).Error()
	exists := mock.Result(mock.RedisError("Index already exists")).Error()
	unknown := mock.Result(mock.RedisError("Unknown index name")).Error()
	oom := mock.Result(mock.RedisError("OOM command not allowed")).Error()

	tests := []struct {
		name    string
		err     error
		want    error
		outcome string
	}{
		{"ok", nil, nil, "ok"},
		{"nil reply", nilReply, db.ErrKeyNotFound, "miss"},
		{"index exists", exists, db.ErrIndexExists, "error"},
		{"unknown index", unknown, db.ErrIndexNotFound, "miss"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(db.OpSearch, "idx", tc.err)
			if !errors.Is(got, tc.want) || (tc.want == nil && got != nil) {
				t.Errorf("translate() = %v, want %v", got, tc.want)
			}
			if o := outcome(got); o != tc.outcome {
				t.Errorf("outcome = %q, want %q", o, tc.outcome)
			}
		})
	}

	got := translate(db.OpHSet, "p:1", oom)
	var dbErr *db.Error
	if !errors.As(got, &dbErr) || dbErr.Op != db.OpHSet || dbErr.Key != "p:1" || outcome(got) != "error" {
		t.Errorf("translate(OOM) = %v", got)
	}
}

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreWithClient(c), c
}

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
