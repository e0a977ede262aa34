// Package warmup implements the progressive-ramp admission controller for
// marketing sending identities.
//
// A new (or reputation-damaged) identity must not mail its full list at
// once: spam filters penalize sudden volume. The controller walks a 30-day
// schedule of rising daily limits and expanding engagement-tier sets,
// gates each send batch through CanSendToTier, and regresses the schedule
// when sending goes idle (cooldown) or deliverability signals degrade.
//
// State lives in one WarmupConfig row per sending identity; completed days
// are recorded append-only in WarmupLog. The schedule table itself is
// static data in this package.
package warmup
