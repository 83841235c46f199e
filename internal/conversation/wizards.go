package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/kinobot/internal/access"
	"github.com/m3rciful/kinobot/internal/store"
)

func (e *Engine) stepUploadCode(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Attachment != nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: attachment before code", ErrValidation), true,
			Reply{Text: textCodeFirst, Menu: MenuCancel})
	}
	code := trimmed(in)
	if code == "" {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: empty code", ErrValidation), true,
			Reply{Text: textAskCode, Menu: MenuCancel})
	}
	sess.Data.Code = code
	e.advance(ctx, in, sess, StateUploadMedia)
	return Reply{Text: fmt.Sprintf(textCodeAccepted, code), Menu: MenuCancel}, nil
}

func (e *Engine) stepUploadMedia(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Attachment == nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: expected attachment", ErrValidation), true,
			Reply{Text: textAskMedia, Menu: MenuCancel})
	}
	if !in.Attachment.Kind.Valid() {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: unsupported attachment %q", ErrValidation, in.Attachment.Kind), true,
			Reply{Text: textUnsupportedMedia, Menu: MenuCancel})
	}
	sess.Data.MediaRef = in.Attachment.Ref
	sess.Data.MediaKind = in.Attachment.Kind
	e.advance(ctx, in, sess, StateUploadCaption)
	return Reply{Text: textAskCaption, Menu: MenuCancel}, nil
}

func (e *Engine) stepUploadCaption(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Attachment != nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: expected caption text", ErrValidation), true,
			Reply{Text: textAskCaption, Menu: MenuCancel})
	}
	caption := trimmed(in)
	if caption == NoCaption {
		caption = ""
	}
	rec := store.MediaRecord{
		Code:       sess.Data.Code,
		MediaRef:   sess.Data.MediaRef,
		MediaKind:  sess.Data.MediaKind,
		Caption:    caption,
		UploaderID: in.UserID,
		UploadedAt: e.now(),
	}
	if err := e.store.Media().Put(ctx, rec); err != nil {
		return e.fail(in, "upload", err)
	}
	e.commit(ctx, in, "upload",
		slog.String("code", rec.Code),
		slog.String("media_kind", string(rec.MediaKind)),
	)
	return Reply{Text: uploadSavedView(rec), Menu: MenuPanel}, nil
}

func (e *Engine) stepChannelAdd(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Attachment != nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: expected channel reference", ErrValidation), true,
			Reply{Text: textAskChannelRef, Menu: MenuCancel})
	}
	ref, err := ParseChannelRef(in.Text)
	if err != nil {
		return e.reject(ctx, in, sess, err, true, Reply{Text: textBadChannelRef, Menu: MenuCancel})
	}
	resolved, err := e.resolver.ResolveChannel(ctx, ref)
	if err != nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: resolve %s: %v", ErrLookup, ref, err), true,
			Reply{Text: fmt.Sprintf(textResolveFailed, ref), Menu: MenuCancel})
	}

	rec := store.ChannelRecord{
		ID:          resolved.ID,
		Username:    resolved.Username,
		DisplayName: resolved.Title,
		AddedAt:     e.now(),
	}
	existing, err := e.store.Channels().Get(ctx, rec.ID)
	switch {
	case err == nil:
		rec.AddedAt = existing.AddedAt
	case !errors.Is(err, store.ErrNotFound):
		return e.fail(in, "channel_add", err)
	}
	if err := e.store.Channels().Put(ctx, rec); err != nil {
		return e.fail(in, "channel_add", err)
	}
	e.commit(ctx, in, "channel_add", slog.String("channel_id", rec.ID))
	return Reply{Text: channelAddedView(rec), Menu: MenuPanel}, nil
}

func (e *Engine) stepChannelRemove(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Attachment != nil {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: expected selector", ErrValidation), true,
			Reply{Text: channelRemoveView(sess.Data.Channels), Menu: MenuCancel})
	}
	text := trimmed(in)

	var target store.ChannelRecord
	if isDigits(text) {
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > len(sess.Data.Channels) {
			return e.reject(ctx, in, sess, fmt.Errorf("%w: position %s out of range", ErrValidation, text), true,
				Reply{Text: fmt.Sprintf(textBadPosition, len(sess.Data.Channels)), Menu: MenuCancel})
		}
		target = sess.Data.Channels[n-1]
	} else {
		found, ok, err := e.matchChannel(ctx, text)
		if err != nil {
			return e.fail(in, "channel_remove", err)
		}
		if !ok {
			return e.reject(ctx, in, sess, fmt.Errorf("%w: channel %q", ErrNotFound, text), false,
				Reply{Text: textChannelNotFound, Menu: MenuPanel})
		}
		target = found
	}

	removed, err := e.store.Channels().Delete(ctx, target.ID)
	if errors.Is(err, store.ErrNotFound) {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: channel %s", ErrNotFound, target.ID), false,
			Reply{Text: textChannelNotFound, Menu: MenuPanel})
	}
	if err != nil {
		return e.fail(in, "channel_remove", err)
	}
	e.commit(ctx, in, "channel_remove", slog.String("channel_id", removed.ID))
	return Reply{Text: fmt.Sprintf(textChannelRemoved, channelName(removed)), Menu: MenuPanel}, nil
}

// matchChannel finds a channel by literal id or @handle in the current list.
func (e *Engine) matchChannel(ctx context.Context, text string) (store.ChannelRecord, bool, error) {
	channels, err := e.store.Channels().List(ctx)
	if err != nil {
		return store.ChannelRecord{}, false, err
	}
	handle := strings.TrimPrefix(text, "@")
	for _, ch := range channels {
		if ch.ID == text || (ch.Username != "" && strings.EqualFold(ch.Username, handle)) {
			return ch, true, nil
		}
	}
	return store.ChannelRecord{}, false, nil
}

func (e *Engine) stepAdminAdd(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Role != access.Owner {
		return e.reject(ctx, in, sess, ErrForbidden, false, Reply{Text: textOwnerOnly, Menu: MenuPanel})
	}
	text := trimmed(in)
	if in.Attachment != nil || !isDigits(text) {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: admin id must be digits", ErrValidation), true,
			Reply{Text: textAdminIDDigits, Menu: MenuCancel})
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: admin id %q", ErrValidation, text), true,
			Reply{Text: textAdminIDDigits, Menu: MenuCancel})
	}
	switch id {
	case in.UserID:
		return e.reject(ctx, in, sess, fmt.Errorf("%w: self addition", ErrValidation), true,
			Reply{Text: textAdminSelf, Menu: MenuCancel})
	case e.policy.OwnerID():
		return e.reject(ctx, in, sess, fmt.Errorf("%w: owner re-addition", ErrValidation), true,
			Reply{Text: textAdminIsOwner, Menu: MenuCancel})
	}

	added, err := e.policy.Grant(ctx, id)
	if err != nil {
		return e.fail(in, "admin_add", err)
	}
	if !added {
		e.sessions.Clear(in.UserID)
		return Reply{Text: fmt.Sprintf(textAdminExists, id), Menu: MenuAdmins}, nil
	}
	e.commit(ctx, in, "admin_add", slog.Int64("target_id", id))
	return Reply{Text: fmt.Sprintf(textAdminAdded, id), Menu: MenuAdmins}, nil
}

func (e *Engine) stepAdminRemove(ctx context.Context, in Input, sess Session) (Reply, error) {
	if in.Role != access.Owner {
		return e.reject(ctx, in, sess, ErrForbidden, false, Reply{Text: textOwnerOnly, Menu: MenuPanel})
	}
	text := trimmed(in)
	n, err := strconv.Atoi(text)
	if in.Attachment != nil || !isDigits(text) || err != nil || n < 1 || n > len(sess.Data.Admins) {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: admin position %q", ErrValidation, text), true,
			Reply{Text: fmt.Sprintf(textBadPosition, len(sess.Data.Admins)), Menu: MenuCancel})
	}
	id := sess.Data.Admins[n-1]
	if id == e.policy.OwnerID() {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: owner cannot be removed", ErrValidation), false,
			Reply{Text: textOwnerNotRemovable, Menu: MenuAdmins})
	}

	removed, err := e.policy.Revoke(ctx, id)
	if err != nil {
		return e.fail(in, "admin_remove", err)
	}
	if !removed {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: admin %d", ErrNotFound, id), false,
			Reply{Text: fmt.Sprintf(textAdminGone, id), Menu: MenuAdmins})
	}
	e.commit(ctx, in, "admin_remove", slog.Int64("target_id", id))
	return Reply{Text: fmt.Sprintf(textAdminRemoved, id), Menu: MenuAdmins}, nil
}

func (e *Engine) stepMediaDelete(ctx context.Context, in Input, sess Session) (Reply, error) {
	code := trimmed(in)
	if in.Attachment != nil || code == "" {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: expected code", ErrValidation), true,
			Reply{Text: textAskDeleteCode, Menu: MenuCancel})
	}
	removed, err := e.store.Media().Delete(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return e.reject(ctx, in, sess, fmt.Errorf("%w: code %q", ErrNotFound, code), false,
			Reply{Text: fmt.Sprintf(textMediaNotFound, code), Menu: MenuPanel})
	}
	if err != nil {
		return e.fail(in, "media_delete", err)
	}
	e.commit(ctx, in, "media_delete", slog.String("code", code))
	return Reply{Text: mediaDeletedView(removed), Menu: MenuPanel}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
