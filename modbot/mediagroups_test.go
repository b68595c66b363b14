package modbot

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type albumCollector struct {
	mutex  sync.Mutex
	albums []Album
	done   chan struct{}
}

func newAlbumCollector() *albumCollector {
	return &albumCollector{done: make(chan struct{}, 16)}
}

func (c *albumCollector) handle(album Album) {
	c.mutex.Lock()
	c.albums = append(c.albums, album)
	c.mutex.Unlock()
	c.done <- struct{}{}
}

func (c *albumCollector) wait(t *testing.T) {
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("album was never flushed")
	}
}

func (c *albumCollector) count() int {
	defer c.mutex.Unlock()
	c.mutex.Lock()
	return len(c.albums)
}

func TestAlbumAssembler_OneFlushInArrivalOrder(t *testing.T) {
	collector := newAlbumCollector()
	assembler := NewAlbumAssembler(150*time.Millisecond, collector.handle)
	key := GroupKey{Chat: 1, Album: "g1"}
	from := Submitter{Id: 1, DisplayName: "Ann"}

	for i := 0; i < 5; i++ {
		assembler.Ingest(key, from, MediaItem{Ref: MediaRef(fmt.Sprintf("p%d", i))})
		time.Sleep(10 * time.Millisecond)
	}
	collector.wait(t)
	time.Sleep(100 * time.Millisecond)

	if collector.count() != 1 {
		t.Fatalf("flushed %d times, want 1", collector.count())
	}
	album := collector.albums[0]
	if len(album.Items) != 5 {
		t.Fatalf("album has %d items, want 5", len(album.Items))
	}
	for i, item := range album.Items {
		if item.Ref != MediaRef(fmt.Sprintf("p%d", i)) {
			t.Fatalf("item %d = %s, arrival order lost", i, item.Ref)
		}
	}
	if album.From.Id != 1 {
		t.Fatalf("album from %+v", album.From)
	}
	if assembler.Pending() != 0 {
		t.Fatal("group left behind after flush")
	}
}

func TestAlbumAssembler_SingleItemFlushes(t *testing.T) {
	collector := newAlbumCollector()
	assembler := NewAlbumAssembler(20*time.Millisecond, collector.handle)
	assembler.Ingest(GroupKey{Chat: 1, Album: "g1"}, Submitter{Id: 1}, MediaItem{Ref: "only"})
	collector.wait(t)
	if len(collector.albums[0].Items) != 1 {
		t.Fatal("single item group must flush with one item")
	}
}

func TestAlbumAssembler_FirstNonEmptyCaption(t *testing.T) {
	album := Album{Items: []MediaItem{{Ref: "a"}, {Ref: "b", Caption: "second"}, {Ref: "c", Caption: "third"}}}
	if album.Caption() != "second" {
		t.Fatalf("caption = %q", album.Caption())
	}
	if (Album{Items: []MediaItem{{Ref: "a"}}}).Caption() != "" {
		t.Fatal("album without captions must have none")
	}
}

func TestAlbumAssembler_FlushBeatsTimer(t *testing.T) {
	collector := newAlbumCollector()
	assembler := NewAlbumAssembler(200*time.Millisecond, collector.handle)
	key := GroupKey{Chat: 1, Album: "g1"}
	assembler.Ingest(key, Submitter{Id: 1}, MediaItem{Ref: "a"})
	assembler.Ingest(key, Submitter{Id: 1}, MediaItem{Ref: "b"})

	album, ok := assembler.Flush(key)
	if !ok || len(album.Items) != 2 {
		t.Fatalf("Flush = %+v, %t", album, ok)
	}
	if _, ok := assembler.Flush(key); ok {
		t.Fatal("second Flush must find nothing")
	}

	time.Sleep(300 * time.Millisecond)
	if collector.count() != 0 {
		t.Fatal("timer flushed a group that was already flushed")
	}
}

func TestAlbumAssembler_SeparateKeys(t *testing.T) {
	collector := newAlbumCollector()
	assembler := NewAlbumAssembler(200*time.Millisecond, collector.handle)

	var wg sync.WaitGroup
	for chat := int64(1); chat <= 3; chat++ {
		wg.Add(1)
		go func(chat int64) {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				assembler.Ingest(GroupKey{Chat: chat, Album: "same-id"}, Submitter{Id: chat}, MediaItem{Ref: MediaRef(fmt.Sprintf("%d-%d", chat, i))})
			}
		}(chat)
	}
	wg.Wait()
	for i := 0; i < 3; i++ {
		collector.wait(t)
	}

	if collector.count() != 3 {
		t.Fatalf("flushed %d albums, want 3", collector.count())
	}
	for _, album := range collector.albums {
		if len(album.Items) != 4 {
			t.Fatalf("album %s has %d items", album.Key, len(album.Items))
		}
	}
}

func TestAlbumAssembler_StopFlushesPending(t *testing.T) {
	collector := newAlbumCollector()
	assembler := NewAlbumAssembler(time.Hour, collector.handle)
	assembler.Ingest(GroupKey{Chat: 1, Album: "g1"}, Submitter{Id: 1}, MediaItem{Ref: "a"})

	assembler.Stop()

	if collector.count() != 1 || assembler.Pending() != 0 {
		t.Fatalf("Stop flushed %d albums, %d pending", collector.count(), assembler.Pending())
	}
}
