package graph

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// Index fingerprints are the uniqueness keys written to the INDEX vertex
// property. They hash a canonical rendering of the identifying tuple so
// that semantically-equivalent structures collide regardless of the order
// they were assembled in.

func fingerprint(canonical string) string {
	sum := blake3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// castingIndex identifies "instance plays role": H(role-id, player-id).
func castingIndex(roleTypeID int64, playerID ConceptID) string {
	return fingerprint(fmt.Sprintf("casting|%d|%s", roleTypeID, playerID))
}

// resourceIndex identifies a value within a resource type.
func resourceIndex(typeID int64, encodedValue string) string {
	return fingerprint(fmt.Sprintf("resource|%d|%s", typeID, encodedValue))
}

// relationIndex identifies a relation by its type and full role map:
// H(type-id, sorted[(role-id, sorted[player-id])]).
func relationIndex(relationTypeID int64, roles map[int64][]ConceptID) string {
	roleIDs := make([]int64, 0, len(roles))
	for roleID := range roles {
		roleIDs = append(roleIDs, roleID)
	}
	sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })

	var b strings.Builder
	fmt.Fprintf(&b, "relation|%d", relationTypeID)
	for _, roleID := range roleIDs {
		players := make([]string, 0, len(roles[roleID]))
		for _, p := range roles[roleID] {
			players = append(players, string(p))
		}
		sort.Strings(players)
		fmt.Fprintf(&b, "|%d:%s", roleID, strings.Join(players, ","))
	}
	return fingerprint(b.String())
}

// rawRoleMap reduces a RoleMap to the id form used for fingerprints.
func rawRoleMap(roles RoleMap) map[int64][]ConceptID {
	raw := make(map[int64][]ConceptID, len(roles))
	for role, players := range roles {
		ids := make([]ConceptID, 0, len(players))
		for _, p := range players {
			ids = append(ids, p.ID())
		}
		raw[role.TypeID] = append(raw[role.TypeID], ids...)
	}
	return raw
}
