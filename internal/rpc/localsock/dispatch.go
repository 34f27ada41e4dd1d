package localsock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clipcatd/clipcat/internal/rpc"
	"github.com/clipcatd/clipcat/internal/types"
)

// Operation names, shared by the server dispatcher and client callers.
const (
	OpInsert           = "insert"
	OpGet              = "get"
	OpGetCurrentClip   = "get_current_clip"
	OpUpdate           = "update"
	OpMark             = "mark"
	OpRemove           = "remove"
	OpBatchRemove      = "batch_remove"
	OpClear            = "clear"
	OpLength           = "length"
	OpList             = "list"
	OpWatcherEnable    = "watcher_enable"
	OpWatcherDisable   = "watcher_disable"
	OpWatcherToggle    = "watcher_toggle"
	OpWatcherGetState  = "watcher_get_state"
	OpGetVersion       = "get_version"
)

type insertRequest struct {
	Kind    types.ClipboardKind `json:"kind"`
	Content types.Content       `json:"content"`
}

type getRequest struct {
	ID uint64 `json:"id"`
}

type getCurrentClipRequest struct {
	Kind types.ClipboardKind `json:"kind"`
}

type updateRequest struct {
	OldID   uint64        `json:"old_id"`
	Content types.Content `json:"content"`
}

type markRequest struct {
	ID   uint64              `json:"id"`
	Kind types.ClipboardKind `json:"kind"`
}

type removeRequest struct {
	ID uint64 `json:"id"`
}

type batchRemoveRequest struct {
	IDs []uint64 `json:"ids"`
}

type listRequest struct {
	PreviewLength int `json:"preview_length"`
}

func dispatch(service *rpc.Service, req Request) Response {
	ctx := context.Background()

	switch req.Op {
	case OpInsert:
		var in insertRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		entry, err := service.Insert(in.Kind, in.Content)
		return result(entry, err)

	case OpGet:
		var in getRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		entry, err := service.Get(in.ID)
		return result(entry, err)

	case OpGetCurrentClip:
		var in getCurrentClipRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		entry, err := service.GetCurrentClip(in.Kind)
		return result(entry, err)

	case OpUpdate:
		var in updateRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		entry, err := service.Update(in.OldID, in.Content)
		return result(entry, err)

	case OpMark:
		var in markRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		entry, err := service.Mark(ctx, in.ID, in.Kind)
		return result(entry, err)

	case OpRemove:
		var in removeRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		return result(service.Remove(in.ID), nil)

	case OpBatchRemove:
		var in batchRemoveRequest
		if err := json.Unmarshal(req.Payload, &in); err != nil {
			return invalidArgument(err)
		}
		return result(service.BatchRemove(in.IDs), nil)

	case OpClear:
		service.Clear()
		return Response{OK: true}

	case OpLength:
		return result(service.Length(), nil)

	case OpList:
		var in listRequest
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &in); err != nil {
				return invalidArgument(err)
			}
		}
		return result(service.List(in.PreviewLength), nil)

	case OpWatcherEnable:
		service.WatcherEnable()
		return Response{OK: true}

	case OpWatcherDisable:
		service.WatcherDisable()
		return Response{OK: true}

	case OpWatcherToggle:
		return result(service.WatcherToggle(), nil)

	case OpWatcherGetState:
		return result(service.WatcherState(), nil)

	case OpGetVersion:
		return result(service.GetVersion(), nil)

	default:
		return errorResponse(fmt.Errorf("%w: unknown op %q", rpc.ErrInvalidArgument, req.Op))
	}
}

func invalidArgument(err error) Response {
	return errorResponse(fmt.Errorf("%w: %v", rpc.ErrInvalidArgument, err))
}

func result(v interface{}, err error) Response {
	if err != nil {
		return errorResponse(err)
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		return errorResponse(merr)
	}
	return Response{OK: true, Payload: data}
}
