package modbot

import (
	"fmt"
	"log"
	"sync"
	"time"
)

type MediaItem struct {
	Ref     MediaRef
	Caption string
}

// GroupKey identifies an album in assembly: the chat it came from and the
// transport's media group id.
type GroupKey struct {
	Chat  int64
	Album string
}

func (key GroupKey) String() string {
	return fmt.Sprintf("%d_%s", key.Chat, key.Album)
}

// Album is a flushed media group, items in arrival order.
type Album struct {
	Key   GroupKey
	From  Submitter
	Items []MediaItem
}

func (album Album) Refs() []MediaRef {
	refs := make([]MediaRef, len(album.Items))
	for i, item := range album.Items {
		refs[i] = item.Ref
	}
	return refs
}

// Caption is the first non-empty item caption.
func (album Album) Caption() string {
	for _, item := range album.Items {
		if item.Caption != "" {
			return item.Caption
		}
	}
	return ""
}

type pendingGroup struct {
	from  Submitter
	items []MediaItem
	timer *time.Timer
	gen   uint64
}

// AlbumAssembler collects the photos of one media group and hands them to Handler
// once no new item arrived for Timeout. Every Ingest restarts the timer, and only
// the timer of the latest generation may flush the group.
type AlbumAssembler struct {
	Timeout time.Duration
	Handler func(Album)

	mutex  sync.Mutex
	groups map[GroupKey]*pendingGroup
}

func NewAlbumAssembler(timeout time.Duration, handler func(Album)) *AlbumAssembler {
	if timeout <= 0 {
		timeout = DefaultAlbumTimeout
	}
	return &AlbumAssembler{
		Timeout: timeout,
		Handler: handler,
		groups:  make(map[GroupKey]*pendingGroup),
	}
}

func (assembler *AlbumAssembler) Ingest(key GroupKey, from Submitter, item MediaItem) {
	defer assembler.mutex.Unlock()
	assembler.mutex.Lock()

	group, contains := assembler.groups[key]
	if !contains {
		group = &pendingGroup{from: from}
		assembler.groups[key] = group
	}
	group.items = append(group.items, item)
	group.gen++
	if group.timer != nil {
		group.timer.Stop()
	}
	gen := group.gen
	group.timer = time.AfterFunc(assembler.Timeout, func() {
		assembler.expire(key, gen)
	})
}

func (assembler *AlbumAssembler) expire(key GroupKey, gen uint64) {
	assembler.mutex.Lock()
	group, contains := assembler.groups[key]
	if !contains || group.gen != gen {
		assembler.mutex.Unlock()
		return
	}
	delete(assembler.groups, key)
	assembler.mutex.Unlock()

	assembler.handle(Album{Key: key, From: group.from, Items: group.items})
}

// Flush removes the group right away and returns it without calling Handler.
// It reports false when the group was already flushed or never existed.
func (assembler *AlbumAssembler) Flush(key GroupKey) (Album, bool) {
	defer assembler.mutex.Unlock()
	assembler.mutex.Lock()

	group, contains := assembler.groups[key]
	if !contains {
		return Album{}, false
	}
	delete(assembler.groups, key)
	if group.timer != nil {
		group.timer.Stop()
	}
	return Album{Key: key, From: group.from, Items: group.items}, true
}

// Pending is the number of groups still waiting for their timer.
func (assembler *AlbumAssembler) Pending() int {
	defer assembler.mutex.Unlock()
	assembler.mutex.Lock()
	return len(assembler.groups)
}

// Stop flushes every pending group through Handler without waiting for timers.
func (assembler *AlbumAssembler) Stop() {
	assembler.mutex.Lock()
	albums := make([]Album, 0, len(assembler.groups))
	for key, group := range assembler.groups {
		if group.timer != nil {
			group.timer.Stop()
		}
		albums = append(albums, Album{Key: key, From: group.from, Items: group.items})
		delete(assembler.groups, key)
	}
	assembler.mutex.Unlock()

	for _, album := range albums {
		assembler.handle(album)
	}
}

func (assembler *AlbumAssembler) handle(album Album) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("album %s handler panicked: %v", album.Key, r)
		}
	}()
	if assembler.Handler != nil {
		assembler.Handler(album)
	}
}
