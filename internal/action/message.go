package action

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// toElements converts outbound segments into platform elements.
func toElements(ctx context.Context, hc *Context, segs []onebot.Segment) ([]platform.Element, error) {
	elements := make([]platform.Element, 0, len(segs))
	for _, seg := range segs {
		el, err := toElement(ctx, hc, seg)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("message is empty")
	}
	return elements, nil
}

func toElement(ctx context.Context, hc *Context, seg onebot.Segment) (platform.Element, error) {
	switch seg.Type {
	case onebot.SegText:
		return platform.TextOf(seg.Str("text")), nil
	case onebot.SegAt:
		qq := seg.Str("qq")
		if qq == "all" {
			return platform.Element{Type: platform.ElementText, Text: &platform.TextElement{Content: "@all", AtType: platform.AtAll}}, nil
		}
		uin, err := strconv.ParseInt(qq, 10, 64)
		if err != nil {
			return platform.Element{}, fmt.Errorf("at: bad qq %q", qq)
		}
		uid, err := hc.API.UIDByUin(ctx, uin)
		if err != nil {
			return platform.Element{}, fmt.Errorf("at %d: %w", uin, err)
		}
		el := platform.AtOf(uid, uin)
		el.Text.Content = "@" + qq
		return el, nil
	case onebot.SegFace:
		id, err := strconv.Atoi(seg.Str("id"))
		if err != nil {
			return platform.Element{}, fmt.Errorf("face: bad id %q", seg.Str("id"))
		}
		return platform.Element{Type: platform.ElementFace, Face: &platform.FaceElement{FaceIndex: id}}, nil
	case onebot.SegImage:
		return platform.Element{Type: platform.ElementPic, Pic: &platform.PicElement{
			FileName: seg.Str("file"),
			URL:      seg.Str("url"),
			Summary:  seg.Str("summary"),
		}}, nil
	case onebot.SegReply:
		id, err := strconv.ParseInt(seg.Str("id"), 10, 32)
		if err != nil {
			return platform.Element{}, fmt.Errorf("reply: bad id %q", seg.Str("id"))
		}
		key, ok := hc.Registry.Resolve(ctx, int32(id))
		if !ok {
			return platform.Element{}, fmt.Errorf("reply: message %d: %w", id, platform.ErrNotFound)
		}
		return platform.Element{Type: platform.ElementReply, Reply: &platform.ReplyElement{SourceMsgID: key.MsgID}}, nil
	case onebot.SegRecord:
		return platform.Element{Type: platform.ElementPtt, Ptt: &platform.PttElement{FileName: seg.Str("file")}}, nil
	case onebot.SegVideo:
		return platform.Element{Type: platform.ElementVideo, Video: &platform.VideoElement{FileName: seg.Str("file")}}, nil
	case onebot.SegFile:
		size, _ := strconv.ParseInt(seg.Str("file_size"), 10, 64)
		return platform.Element{Type: platform.ElementFile, File: &platform.FileElement{
			FileName: seg.Str("file"),
			FileUUID: seg.Str("file_id"),
			FileSize: size,
		}}, nil
	case onebot.SegJSON:
		return platform.Element{Type: platform.ElementArk, Ark: &platform.ArkElement{Data: seg.Str("data")}}, nil
	default:
		return platform.Element{}, fmt.Errorf("unsupported segment type %q", seg.Type)
	}
}

// send delivers body to peer and returns the short id of the sent message.
func send(ctx context.Context, hc *Context, peer platform.Peer, body MessageBody, autoEscape bool) (any, error) {
	segs, err := body.Segments(autoEscape)
	if err != nil {
		return nil, err
	}
	elements, err := toElements(ctx, hc, segs)
	if err != nil {
		return nil, err
	}
	sent, err := hc.API.SendMessage(ctx, peer, elements)
	if err != nil {
		return nil, err
	}
	id, err := hc.Registry.Assign(ctx, identity.KeyOf(sent))
	if err != nil {
		return nil, err
	}
	return MessageIDResult{MessageID: id}, nil
}

// MessageIDResult is returned by the send actions.
type MessageIDResult struct {
	MessageID int32 `json:"message_id"`
}
