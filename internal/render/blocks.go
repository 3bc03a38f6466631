// Package render turns parsed stream records into terminal output.
//
// Records flow through a Pipeline that appends exactly one immutable Block
// per record to an ordered sequence and hands it to a BlockWriter. Blocks
// are never revisited: output produced for an earlier record stays as-is no
// matter what arrives later, including failures.
package render

import (
	"fmt"

	"github.com/markis/learnpath/internal/stream"
	"github.com/markis/learnpath/internal/videoid"
)

// Link is a plain label/url pair for a lesson's alternate videos.
type Link struct {
	Title string
	URL   string
}

// LessonBlock is the rendered form of one lesson.
//
// EmbedID is the identifier of the lesson's first video when one could be
// extracted; the embed is silently omitted otherwise. Links holds videos at
// positions 2..N in original order. NoVideos marks a lesson whose video
// search came back empty and renders as a placeholder.
type LessonBlock struct {
	Title    string
	EmbedID  string
	Links    []Link
	NoVideos bool
}

// ModuleBlock is the rendered form of one content record.
type ModuleBlock struct {
	Title   string
	Lessons []LessonBlock
}

// ErrorBlock surfaces an in-band error reported by the service.
type ErrorBlock struct {
	Message string
}

// Block is one rendered unit, immutable once produced.
type Block interface {
	isBlock()
}

func (ModuleBlock) isBlock() {}
func (ErrorBlock) isBlock()  {}

// BlockWriter receives each block as it is produced.
type BlockWriter interface {
	WriteBlock(Block) error
}

// Pipeline converts records to blocks, one block per record, in arrival
// order. It is append-only: the block sequence only ever grows at the end.
type Pipeline struct {
	sink   BlockWriter
	blocks []Block
}

// NewPipeline returns a pipeline writing blocks to sink.
func NewPipeline(sink BlockWriter) *Pipeline {
	return &Pipeline{sink: sink}
}

// Render appends the block for one record and writes it to the sink.
func (p *Pipeline) Render(rec stream.Record) error {
	var block Block
	switch r := rec.(type) {
	case *stream.ErrorRecord:
		block = ErrorBlock{Message: r.Message}
	case *stream.ContentRecord:
		block = buildModuleBlock(r)
	default:
		return fmt.Errorf("unknown record type %T", rec)
	}

	p.blocks = append(p.blocks, block)
	if p.sink == nil {
		return nil
	}
	if err := p.sink.WriteBlock(block); err != nil {
		return fmt.Errorf("failed to write block: %w", err)
	}
	return nil
}

// Blocks returns the rendered blocks so far, in arrival order.
func (p *Pipeline) Blocks() []Block {
	out := make([]Block, len(p.blocks))
	copy(out, p.blocks)
	return out
}

func buildModuleBlock(rec *stream.ContentRecord) ModuleBlock {
	block := ModuleBlock{Title: rec.ModuleTitle}
	for _, lesson := range rec.Lessons {
		block.Lessons = append(block.Lessons, buildLessonBlock(lesson))
	}
	return block
}

func buildLessonBlock(lesson stream.LessonRecord) LessonBlock {
	lb := LessonBlock{Title: lesson.Title}
	if len(lesson.Videos) == 0 {
		lb.NoVideos = true
		return lb
	}

	if id, ok := videoid.Extract(lesson.Videos[0].URL); ok {
		lb.EmbedID = id
	}
	for _, v := range lesson.Videos[1:] {
		lb.Links = append(lb.Links, Link{Title: v.Title, URL: v.URL})
	}
	return lb
}
