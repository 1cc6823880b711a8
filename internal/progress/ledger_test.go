package progress

import (
	"testing"

	"github.com/hitoshi/gamebox/internal/model"
)

// TestLedger_ReplaceAndGet はReplaceで置き換えた内容がGetで取得できることを検証する。
func TestLedger_ReplaceAndGet(t *testing.T) {
	l := NewLedger()
	l.Replace([]*model.Progress{
		{UserID: "u", GameID: "b", Score: 20},
		{UserID: "u", GameID: "a", Score: 10, Completed: true},
		nil, // nil要素は無視される
	})

	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if got, ok := l.Get("a"); !ok || got.Score != 10 {
		t.Errorf("Get(a) = %+v ok=%v", got, ok)
	}
	if _, ok := l.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}
}

// TestLedger_Replace_DropsStale は2回目のReplaceで以前のレコードが
// 残らないことを検証する。
func TestLedger_Replace_DropsStale(t *testing.T) {
	l := NewLedger()
	l.Replace([]*model.Progress{{UserID: "u", GameID: "old", Score: 1}})
	l.Replace([]*model.Progress{{UserID: "u", GameID: "new", Score: 2}})

	if _, ok := l.Get("old"); ok {
		t.Error("stale record must not survive a wholesale replace")
	}
}

// TestLedger_DerivedValues は合計スコアとクリア数の計算を検証する。
func TestLedger_DerivedValues(t *testing.T) {
	l := NewLedger()
	l.Replace([]*model.Progress{
		{UserID: "u", GameID: "a", Score: 10, Completed: true},
		{UserID: "u", GameID: "b", Score: 20},
		{UserID: "u", GameID: "c", Score: 30, Completed: true},
	})

	if got := l.TotalScore(); got != 60 {
		t.Errorf("TotalScore = %d, want 60", got)
	}
	if got := l.CompletedCount(); got != 2 {
		t.Errorf("CompletedCount = %d, want 2", got)
	}
}

// TestLedger_Records_Ordered はRecordsがゲームID昇順で返ることを検証する。
func TestLedger_Records_Ordered(t *testing.T) {
	l := NewLedger()
	l.Replace([]*model.Progress{
		{UserID: "u", GameID: "c"},
		{UserID: "u", GameID: "a"},
		{UserID: "u", GameID: "b"},
	})

	records := l.Records()
	if len(records) != 3 {
		t.Fatalf("len = %d, want 3", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].GameID != want {
			t.Errorf("records[%d].GameID = %q, want %q", i, records[i].GameID, want)
		}
	}
}

// TestLedger_Empty は空の台帳の派生読み取りを検証する。
func TestLedger_Empty(t *testing.T) {
	l := NewLedger()
	if l.TotalScore() != 0 || l.CompletedCount() != 0 || l.Len() != 0 {
		t.Error("empty ledger should derive zero values")
	}
	if records := l.Records(); len(records) != 0 {
		t.Errorf("Records on empty ledger = %v", records)
	}
}
