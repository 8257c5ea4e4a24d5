package mockserver

import (
	"context"
	"testing"
	"time"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)

	reply := make(chan *Game, 1)
	h.Inbox() <- CreateGame{PlayerAID: 1, PlayerBID: 2, Reply: reply}
	g1 := <-reply

	h.Inbox() <- GetGame{ID: 1, Reply: reply}
	g2 := <-reply

	if g1 == nil || g2 == nil || g1 != g2 {
		t.Fatalf("expected same game pointer")
	}
}

func TestHub_GetUnknown_RepliesNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)

	reply := make(chan *Game, 1)
	h.Inbox() <- GetGame{ID: 404, Reply: reply}
	if g := <-reply; g != nil {
		t.Fatalf("expected nil for unknown game, got %+v", g)
	}
}

func TestHub_SequentialIDs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)

	reply := make(chan *Game, 1)
	h.Inbox() <- CreateGame{PlayerAID: 1, PlayerBID: 2, Reply: reply}
	first := <-reply
	h.Inbox() <- CreateGame{PlayerAID: 3, PlayerBID: 4, Reply: reply}
	second := <-reply

	v1 := recvView(t, first, 100*time.Millisecond)
	v2 := recvView(t, second, 100*time.Millisecond)
	if v1.ID != 1 || v2.ID != 2 {
		t.Fatalf("want ids 1 and 2, got %d and %d", v1.ID, v2.ID)
	}
}
