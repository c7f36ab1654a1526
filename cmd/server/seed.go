package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/domain"
	"github.com/UkralStul/rubbhub/internal/forum"
	"github.com/UkralStul/rubbhub/internal/storage"
)

const demoInviteCode = "RUBBHUB-DEMO"

// fillWithMockData заполняет in-memory хранилище демо-данными: два
// пользователя, публичный пост с веткой комментариев и приватный пост.
func fillWithMockData(ctx context.Context, store storage.Storage, authSvc *auth.Service, forumSvc *forum.Service) {
	if err := store.EnsureInviteCodes(ctx, []string{demoInviteCode}); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to add invite code")
	}

	// 1. Регистрируем пользователей через обычный сценарий.
	users := map[string]*domain.Identity{}
	for _, name := range []string{"lab_rat", "phd_survivor"} {
		err := authSvc.Register(ctx, auth.RegisterInput{
			Email:      name + "@rubbhub.local",
			Password:   "demo123",
			Username:   name,
			InviteCode: demoInviteCode,
		})
		if err != nil {
			log.Fatal().Err(err).Str("user", name).Msg("fillWithMockData: failed to register user")
		}
		u, err := store.GetUserByUsername(ctx, name)
		if err != nil {
			log.Fatal().Err(err).Msg("fillWithMockData: failed to load user")
		}
		users[name] = &domain.Identity{UserID: u.ID, Role: u.Role}
	}
	rat, survivor := users["lab_rat"], users["phd_survivor"]

	// 2. Публичный пост.
	entryID, err := forumSvc.CreateEntry(ctx, rat, forum.EntryInput{
		Title:      "Колонка забита, образец потерян",
		Domain:     "Chemistry",
		Major:      "Organic synthesis",
		WasteType:  domain.WasteRecyclable,
		Cause:      "Забыл профильтровать раствор",
		Content:    "Третья неделя синтеза ушла в никуда.",
		Visibility: domain.VisibilityPublic,
		Tags:       []string{"chromatography", "pain"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create entry")
	}

	// 3. Корневой комментарий и ответ на него.
	rootID, err := forumSvc.AddComment(ctx, survivor, entryID, "Классика. Фильтр всегда дешевле колонки.", "")
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create comment")
	}
	if _, err := forumSvc.AddComment(ctx, rat, entryID, "Теперь запомню навсегда.", rootID); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create reply")
	}
	if _, err := forumSvc.ToggleEntryLike(ctx, survivor, entryID); err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to like entry")
	}

	// 4. Приватный пост виден только автору.
	privateID, err := forumSvc.CreateEntry(ctx, survivor, forum.EntryInput{
		Title:      "Черновик главы диссертации",
		Domain:     "Physics",
		WasteType:  domain.WasteUnrecyclable,
		Content:    "Никому не показывать.",
		Visibility: domain.VisibilityPrivate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("fillWithMockData: failed to create private entry")
	}

	log.Info().
		Str("entry_id", entryID).
		Str("private_entry_id", privateID).
		Str("password", "demo123").
		Msg("mock data filled")
}
