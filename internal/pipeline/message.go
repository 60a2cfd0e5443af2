package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

func (p *Pipeline) senderUin(ctx context.Context, m *platform.RawMessage) (int64, error) {
	if m.SenderUin != 0 {
		return m.SenderUin, nil
	}
	uin, err := p.api.UinByUID(ctx, m.SenderUID)
	if err != nil {
		return 0, fmt.Errorf("resolve sender %s: %w", m.SenderUID, err)
	}
	return uin, nil
}

func groupIDOf(m *platform.RawMessage) (int64, error) {
	if m.PeerUin != 0 {
		return m.PeerUin, nil
	}
	gid, err := strconv.ParseInt(m.PeerUID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("group peer %q: %w", m.PeerUID, err)
	}
	return gid, nil
}

// buildMessage converts m into a message event carrying the given short id.
func (p *Pipeline) buildMessage(ctx context.Context, m *platform.RawMessage, id int32) (*onebot.MessageEvent, error) {
	userID, err := p.senderUin(ctx, m)
	if err != nil {
		return nil, err
	}
	ev := &onebot.MessageEvent{
		Base:       onebot.Base{Time: m.MsgTime, SelfID: p.self.Uin, PostType: onebot.PostMessage},
		MessageID:  id,
		MessageSeq: id,
		UserID:     userID,
		Font:       14,
		Sender:     onebot.Sender{UserID: userID, Nickname: m.SendNickName},
	}

	switch m.ChatKind {
	case platform.ChatGroup:
		gid, err := groupIDOf(m)
		if err != nil {
			return nil, err
		}
		ev.MessageType = onebot.MessageGroup
		ev.SubType = onebot.SubTypeNormal
		ev.GroupID = gid
		ev.Sender.Card = m.SendMemberName
		ev.Sender.Role = platform.RoleMember
		member, err := p.api.GroupMember(ctx, gid, m.SenderUID)
		if err != nil {
			p.log.Debug().Err(err).Int64("group_id", gid).Str("uid", m.SenderUID).Msg("Sender member lookup failed")
		} else if member != nil {
			ev.Sender.Role = member.Role
			if ev.Sender.Card == "" {
				ev.Sender.Card = member.Card
			}
			if ev.Sender.Nickname == "" {
				ev.Sender.Nickname = member.Nick
			}
		}
	case platform.ChatFriend:
		ev.MessageType = onebot.MessagePrivate
		ev.SubType = onebot.SubTypeFriend
	case platform.ChatTempGroup:
		ev.MessageType = onebot.MessagePrivate
		ev.SubType = onebot.SubTypeGroup
	default:
		return nil, fmt.Errorf("message %s: unsupported chat kind %s", m.MsgID, m.ChatKind)
	}

	ev.SetMessage(p.segments(ctx, m), p.format)
	return ev, nil
}

// segments converts the content elements of m. Elements that cannot be
// represented are skipped; files shared into groups are reported as
// group_upload notices instead.
func (p *Pipeline) segments(ctx context.Context, m *platform.RawMessage) []onebot.Segment {
	segs := make([]onebot.Segment, 0, len(m.Elements))
	for _, el := range m.Elements {
		switch {
		case el.Text != nil:
			segs = append(segs, p.textSegment(ctx, el.Text))
		case el.Face != nil:
			segs = append(segs, onebot.Face(el.Face.FaceIndex))
		case el.Pic != nil:
			segs = append(segs, onebot.Image(el.Pic.FileName, el.Pic.URL, el.Pic.Summary))
		case el.Reply != nil:
			id, ok := p.registry.Lookup(ctx, identity.Key{ChatKind: m.ChatKind, PeerUID: m.PeerUID, MsgID: el.Reply.SourceMsgID})
			if !ok {
				p.log.Debug().Str("source_msg_id", el.Reply.SourceMsgID).Msg("Reply source unknown, dropping reply segment")
				continue
			}
			segs = append(segs, onebot.Reply(id))
		case el.Ptt != nil:
			segs = append(segs, onebot.Record(el.Ptt.FileName))
		case el.Video != nil:
			segs = append(segs, onebot.Video(el.Video.FileName))
		case el.File != nil:
			if m.ChatKind == platform.ChatGroup {
				continue
			}
			segs = append(segs, onebot.File(el.File.FileName, el.File.FileUUID, el.File.FileSize))
		case el.Ark != nil:
			segs = append(segs, onebot.JSON(el.Ark.Data))
		}
	}
	return segs
}

func (p *Pipeline) textSegment(ctx context.Context, t *platform.TextElement) onebot.Segment {
	switch t.AtType {
	case platform.AtAll:
		return onebot.At("all")
	case platform.AtUser:
		uin := t.AtUin
		if uin == 0 {
			resolved, err := p.api.UinByUID(ctx, t.AtUID)
			if err != nil {
				p.log.Debug().Err(err).Str("uid", t.AtUID).Msg("Mention target unresolved, keeping text")
				return onebot.Text(t.Content)
			}
			uin = resolved
		}
		return onebot.At(strconv.FormatInt(uin, 10))
	default:
		return onebot.Text(t.Content)
	}
}

// buildGroupNotice derives a group notice (poke or file upload) from m, or nil.
func (p *Pipeline) buildGroupNotice(ctx context.Context, m *platform.RawMessage) (onebot.Event, error) {
	if m.ChatKind != platform.ChatGroup {
		return nil, nil
	}
	gid, err := groupIDOf(m)
	if err != nil {
		return nil, err
	}
	for _, el := range m.Elements {
		switch {
		case el.GrayTip != nil && el.GrayTip.Poke != nil:
			op, target, err := p.pokeParties(ctx, el.GrayTip.Poke)
			if err != nil {
				return nil, err
			}
			return onebot.NewPokeNotice(p.self.Uin, gid, op, target), nil
		case el.File != nil:
			sender, err := p.senderUin(ctx, m)
			if err != nil {
				return nil, err
			}
			return onebot.NewGroupUploadNotice(p.self.Uin, gid, sender, onebot.UploadedFile{
				ID:    el.File.FileUUID,
				Name:  el.File.FileName,
				Size:  el.File.FileSize,
				BusID: el.File.BusID,
			}), nil
		}
	}
	return nil, nil
}

// buildPrivateNotice derives a private poke notice from m, or nil.
func (p *Pipeline) buildPrivateNotice(ctx context.Context, m *platform.RawMessage) (onebot.Event, error) {
	if m.ChatKind != platform.ChatFriend {
		return nil, nil
	}
	for _, el := range m.Elements {
		if el.GrayTip == nil || el.GrayTip.Poke == nil {
			continue
		}
		op, target, err := p.pokeParties(ctx, el.GrayTip.Poke)
		if err != nil {
			return nil, err
		}
		return onebot.NewPokeNotice(p.self.Uin, 0, op, target), nil
	}
	return nil, nil
}

func (p *Pipeline) pokeParties(ctx context.Context, tip *platform.PokeTip) (int64, int64, error) {
	op, err := p.api.UinByUID(ctx, tip.OperatorUID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve poke operator: %w", err)
	}
	target, err := p.api.UinByUID(ctx, tip.TargetUID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve poke target: %w", err)
	}
	return op, target, nil
}
