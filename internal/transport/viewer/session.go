package viewer

import (
	"context"
	"encoding/json"

	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/viewerproto"
)

// session handles client messages for one connection. Replies that concern
// only this client go out on direct; loop broadcasts arrive separately.
type session struct {
	s      *Server
	ctx    context.Context
	direct chan []byte
}

func (c *session) handle(msg []byte) {
	typ, err := viewerproto.PeekType(msg)
	if err != nil {
		c.sendError(viewerproto.ErrBadRequest, "malformed message")
		return
	}
	switch typ {
	case viewerproto.TypeInput:
		var in viewerproto.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			c.sendError(viewerproto.ErrBadRequest, "bad INPUT")
			return
		}
		select {
		case c.s.pg.Inputs() <- playground.InputEvent{Kind: in.Kind, Key: in.Key, DX: in.DX, DY: in.DY, Granted: in.Granted}:
		default:
			// Drop input under load; held keys are re-sent by the client.
		}

	case viewerproto.TypeRun:
		var run viewerproto.RunMsg
		if err := json.Unmarshal(msg, &run); err != nil {
			c.sendError(viewerproto.ErrBadRequest, "bad RUN")
			return
		}
		// The outcome is broadcast to every viewer as RUN_RESULT.
		select {
		case c.s.pg.Runs() <- playground.RunRequest{Code: run.Code}:
		default:
			c.sendError(viewerproto.ErrBusy, "too many queued runs")
		}

	case viewerproto.TypeExport:
		res, err := c.s.export(c.ctx)
		if err != nil {
			c.sendError(viewerproto.ErrBusy, err.Error())
			return
		}
		if res.Err != nil {
			c.sendError(viewerproto.ErrInternal, res.Err.Error())
			return
		}
		c.send(viewerproto.ExportDataMsg{Type: viewerproto.TypeData, FileName: voxelfile.DefaultFileName, Data: res.Data})

	case viewerproto.TypeImport:
		var imp viewerproto.ImportMsg
		if err := json.Unmarshal(msg, &imp); err != nil {
			c.sendError(viewerproto.ErrBadRequest, "bad IMPORT")
			return
		}
		data := []byte(imp.Data)
		// A file read as text arrives as a JSON string holding the document.
		var text string
		if json.Unmarshal(imp.Data, &text) == nil {
			data = []byte(text)
		}
		res, err := c.s.importData(c.ctx, data)
		if err != nil {
			c.sendError(viewerproto.ErrBusy, err.Error())
			return
		}
		if res.Err != nil {
			code, _ := importErrorCode(res.Err)
			c.sendError(code, res.Err.Error())
		}

	default:
		c.sendError(viewerproto.ErrBadRequest, "unknown message type "+typ)
	}
}

func (c *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.direct <- b:
	case <-c.ctx.Done():
	}
}

func (c *session) sendError(code, msg string) {
	c.send(viewerproto.ErrorMsg{Type: viewerproto.TypeError, Code: code, Message: msg})
}
