package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flowcanvas/flowcanvas/pkg/quota"
)

// Identity headers. Authentication and session issuance are external
// collaborators; by the time a request reaches this server, the gateway has
// resolved the account and entitlement into these headers.
const (
	headerAccountID    = "X-Account-ID"
	headerSubscription = "X-Subscription"

	subscriptionActive = "active"
)

// resolveIdentity derives the caller's quota identity. Authenticated callers
// are keyed by account id; anonymous callers by a hashed fingerprint of
// client address and user agent, so the ledger never stores either raw.
func resolveIdentity(c *fiber.Ctx) (quota.Identity, bool) {
	if accountID := c.Get(headerAccountID); accountID != "" {
		subscriber := c.Get(headerSubscription) == subscriptionActive
		return quota.AccountIdentity(accountID, subscriber), true
	}

	return quota.AnonymousIdentity(c.IP(), c.Get(fiber.HeaderUserAgent)), false
}
