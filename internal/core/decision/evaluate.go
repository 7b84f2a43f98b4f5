package decision

import (
	"math"

	"github.com/wildvale/server/internal/core/spatial"
)

// Profile holds the behavioral weights for a species. Profiles are built once
// at boot (from the Lua behavior scripts) and never mutated afterward, which
// keeps Evaluate pure.
type Profile struct {
	HighUrgency       float64 // need urgency above which it is addressed immediately
	SocialThreshold   float64 // social need above which company is sought
	FleeThreatLevel   float64 // threat level that triggers fleeing
	ThreatProximity   float64 // distance under which a threat counts
	InteractionRange  float64 // close enough to consume / socialize
	SocialRange       float64 // distance within which friends are approachable
	WanderDistance    float64 // wander step length
	RestDuration      float64 // seconds of rest per Rest decision
	MinResourceAmount float64 // floor for resource scoring divisor
}

// DefaultProfile is the fallback when a species has no scripted profile.
func DefaultProfile() Profile {
	return Profile{
		HighUrgency:       0.7,
		SocialThreshold:   0.6,
		FleeThreatLevel:   0.5,
		ThreatProximity:   30.0,
		InteractionRange:  2.0,
		SocialRange:       15.0,
		WanderDistance:    20.0,
		RestDuration:      5.0,
		MinResourceAmount: 1.0,
	}
}

// Evaluate is the pure decision function: identical (ctx, tick, profile)
// always yields an identical Decision. It reads only its arguments: no
// registry, no spatial index, no process-wide state. Tie-breaking randomness
// comes from a PRNG seeded by the entity id and tick.
func Evaluate(ctx *Context, tick uint64, p Profile) Decision {
	rng := newTieRNG(ctx.Entity, tick)

	if d, ok := fleeFromThreat(ctx, p, rng); ok {
		return d
	}

	// Keep eating or drinking while the matching need remains.
	switch ctx.State {
	case StateEating:
		if ctx.Needs.Hunger > 0.1 {
			return Idle()
		}
	case StateDrinking:
		if ctx.Needs.Thirst > 0.1 {
			return Idle()
		}
	}

	if kind, urgency := ctx.Needs.MostUrgent(); urgency > p.HighUrgency {
		if d, ok := addressNeed(ctx, p, rng, kind, urgency); ok {
			return d
		}
	}

	if ctx.Needs.Social > p.SocialThreshold {
		if d, ok := approachFriend(ctx, p); ok {
			return d
		}
	}

	if ctx.State == StateIdle {
		return Decision{
			Kind:    KindMove,
			Target:  wanderTarget(ctx.Position, p.WanderDistance, rng),
			Urgency: 0.2,
		}
	}
	return Idle()
}

func fleeFromThreat(ctx *Context, p Profile, rng *tieRNG) (Decision, bool) {
	var nearest *ThreatInfo
	for i := range ctx.Threats {
		if nearest == nil || ctx.Threats[i].Distance < nearest.Distance {
			nearest = &ctx.Threats[i]
		}
	}
	if nearest == nil || nearest.Level <= p.FleeThreatLevel || nearest.Distance >= p.ThreatProximity {
		return Decision{}, false
	}

	dir := ctx.Position.Sub(nearest.Position).Normalize()
	if dir == (spatial.Vec2{}) {
		// Threat exactly on top of the agent: pick a reproducible direction.
		angle := rng.float64() * 2 * math.Pi
		dir = spatial.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
	}
	return Decision{Kind: KindFlee, Target: dir}, true
}

func addressNeed(ctx *Context, p Profile, rng *tieRNG, kind NeedKind, urgency float64) (Decision, bool) {
	switch kind {
	case NeedHunger:
		return seekResource(ctx, p, rng, ResourceFood, urgency)
	case NeedThirst:
		return seekResource(ctx, p, rng, ResourceWater, urgency)
	case NeedEnergy:
		return Decision{Kind: KindRest, Duration: p.RestDuration}, true
	}
	return Decision{}, false
}

// seekResource consumes the best matching resource in range, moves toward it,
// or searches in a reproducible direction when none is perceivable. Resources
// score by distance over amount; ties resolve to the lowest entity id because
// context slices are ordered ascending.
func seekResource(ctx *Context, p Profile, rng *tieRNG, want ResourceKind, urgency float64) (Decision, bool) {
	var best *ResourceInfo
	var bestScore float64
	for i := range ctx.Resources {
		r := &ctx.Resources[i]
		if r.Kind != want {
			continue
		}
		score := r.Distance / math.Max(r.Amount, p.MinResourceAmount)
		if best == nil || score < bestScore {
			best, bestScore = r, score
		}
	}

	if best == nil {
		return Decision{
			Kind:    KindMove,
			Target:  searchTarget(ctx.Position, p.WanderDistance, want, rng),
			Urgency: urgency,
		}, true
	}
	if best.Distance <= p.InteractionRange {
		return Decision{
			Kind:     KindConsume,
			Subject:  best.Entity,
			Resource: best.Kind,
		}, true
	}
	return Decision{
		Kind:    KindMove,
		Target:  best.Position,
		Urgency: urgency,
	}, true
}

func approachFriend(ctx *Context, p Profile) (Decision, bool) {
	var best *CreatureInfo
	for i := range ctx.Creatures {
		c := &ctx.Creatures[i]
		if c.Relation != RelationFriendly || c.Distance >= p.SocialRange {
			continue
		}
		if best == nil || c.Distance < best.Distance {
			best = c
		}
	}
	if best == nil {
		return Decision{}, false
	}
	return Decision{Kind: KindSocialize, Subject: best.Entity}, true
}

func wanderTarget(pos spatial.Vec2, dist float64, rng *tieRNG) spatial.Vec2 {
	angle := rng.float64() * 2 * math.Pi
	return pos.Add(spatial.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}.Scale(dist))
}

// searchTarget biases the search direction per resource kind so an agent that
// fails to find food and water in the same spot fans out instead of pacing.
func searchTarget(pos spatial.Vec2, dist float64, want ResourceKind, rng *tieRNG) spatial.Vec2 {
	offset := 0.0
	if want == ResourceWater {
		offset = math.Pi
	}
	angle := rng.float64()*2*math.Pi + offset
	return pos.Add(spatial.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}.Scale(dist * 1.5))
}
