package memory

import (
	"context"
	"testing"

	"quizzz-service/internal/domain"
)

func TestNoticeBoardDrainIsOneShot(t *testing.T) {
	board := NewNoticeBoard()
	board.Notify(context.Background(), "u1", domain.Notice{Kind: domain.NoticeStoreWriteFailure, Message: "save failed"})

	if got := board.Drain("u2"); len(got) != 0 {
		t.Fatalf("expected no notices for other user, got %+v", got)
	}
	got := board.Drain("u1")
	if len(got) != 1 || got[0].Message != "save failed" {
		t.Fatalf("unexpected notices %+v", got)
	}
	if again := board.Drain("u1"); len(again) != 0 {
		t.Fatalf("expected notices to be drained, got %+v", again)
	}
}

func TestNoticeBoardKeepsNewest(t *testing.T) {
	board := NewNoticeBoard()
	for i := 0; i < maxPendingNotices+5; i++ {
		board.Notify(context.Background(), "u1", domain.Notice{Message: string(rune('a' + i%26))})
	}
	if got := board.Drain("u1"); len(got) != maxPendingNotices {
		t.Fatalf("expected %d notices, got %d", maxPendingNotices, len(got))
	}
}
