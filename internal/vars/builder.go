// Package vars собирает контекст переменных звонка — flat map,
// доступную placeholder-резолверу при рендеринге узлов.
package vars

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Vocata/internal/repo"
)

// CampaignPrefix — префикс переменных, инжектируемых кампанией,
// чтобы не конфликтовать с ключами из звонка и внешних запросов.
const CampaignPrefix = "phonebook_"

// Store — персистентное хранилище контекстов по handle.
type Store interface {
	// Get возвращает сохранённую map для handle.
	// repo.ErrNotFound — handle ещё не создан.
	Get(ctx context.Context, handle string) (map[string]any, error)
}

// Fallback — поля, выводимые напрямую из запроса оператора.
// Присутствуют в контексте всегда, даже без сохранённых данных.
type Fallback struct {
	// Caller — номер звонящего.
	Caller string

	// Called — набранный номер (линия аккаунта).
	Called string

	// Digits — нажатые цифры текущего запроса.
	Digits string
}

// Builder собирает контекст переменных из трёх источников:
// fallback-полей запроса, сохранённой map по handle и переменных кампании.
type Builder struct {
	store Store
}

// NewBuilder создаёт Builder поверх хранилища контекстов.
func NewBuilder(store Store) *Builder {
	return &Builder{store: store}
}

// Build возвращает контекст переменных звонка.
//
// Порядок слияния (поздние перекрывают ранние):
//  1. сохранённая map по handle (если handle задан и создан);
//  2. fallback-поля запроса;
//  3. переменные кампании с префиксом CampaignPrefix.
//
// Пустой handle даёт контекст только из (2) и (3): хранилище
// не трогается и sentinel-ключи не создаются.
func (b *Builder) Build(ctx context.Context, handle string, fb Fallback, campaignVars map[string]any) (map[string]any, error) {
	out := make(map[string]any)

	if handle != "" {
		stored, err := b.store.Get(ctx, handle)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			// handle создаётся лениво первым MAKE_REQUEST
		case err != nil:
			return nil, fmt.Errorf("load variable context %q: %w", handle, err)
		default:
			for k, v := range stored {
				out[k] = v
			}
		}
	}

	out["recipient_number"] = fb.Caller
	out["my_number"] = fb.Called
	out["digits"] = fb.Digits

	for k, v := range campaignVars {
		out[CampaignPrefix+k] = v
	}

	return out, nil
}
