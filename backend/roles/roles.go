package roles

import (
	"errors"
	"math/rand/v2"

	"github.com/kim-jong-seong/smartto/backend/model"
)

var (
	ErrInsufficientRoles = errors.New("not enough roles for all players")
)

// Assign deals one role label to every player by drawing uniformly at
// random, without replacement, from the pool expanded to a flat multiset.
// It fails up front when players outnumber labels; leftover labels are
// discarded.
func Assign(playerIDs []string, pool []model.RoleCount) (map[string]string, error) {
	var flat []string
	for _, rc := range pool {
		for i := 0; i < rc.Count; i++ {
			flat = append(flat, rc.Name)
		}
	}
	if len(playerIDs) > len(flat) {
		return nil, ErrInsufficientRoles
	}

	assigned := make(map[string]string, len(playerIDs))
	for _, id := range playerIDs {
		i := rand.IntN(len(flat))
		assigned[id] = flat[i]
		flat[i] = flat[len(flat)-1]
		flat = flat[:len(flat)-1]
	}
	return assigned, nil
}
