// Package github implements a connector for GitHub repositories.
//
// Each repository visible to the authenticated account is a resource.
// Issues (and, unless disabled, pull requests) are synced as action
// activities keyed by the immutable repository and issue IDs:
//
//	github:issue:{repoID}:{issueID}
//
// The issue body is stored in the "description" note, which is rewritten on
// every sync. Each issue comment becomes an immutable "comment-{id}" note.
//
// # Pagination and checkpoints
//
// Issues are listed oldest-update first with the requested page size. The
// cursor carries the page number, the lower "since" bound and the highest
// updated_at seen so far. When the last page is reached the high-water mark
// becomes the checkpoint for the next incremental pass. GitHub's since filter
// is inclusive, so the newest issue is seen again on the next pass; upserts
// are idempotent.
//
// # Rate Limiting
//
// The client uses a dual strategy:
//
//  1. Proactive throttling: a token bucket limits requests to roughly 1.2
//     per second, under the 5,000/hour authenticated limit.
//
//  2. Reactive handling: X-RateLimit-Remaining and X-RateLimit-Reset are
//     tracked and requests wait for the reset once the buffer is exhausted.
//
// Exhausted limits surface as [RateLimitError], which matches
// [domain.ErrRateLimited] so the scheduler retries with backoff.
//
// # Webhooks
//
// Repository hooks deliver "issues" and "issue_comment" events. Deliveries
// are verified with the X-Hub-Signature-256 HMAC in constant time. Issue
// events carry the whole issue and are applied directly; comment events
// upsert a single note. Deleted and transferred issues are reported as
// deletions.
//
// # Configuration
//
// Connection settings:
//
//   - repos: comma-separated owner/name allowlist. Default: every repository.
//   - include_pulls: "false" skips pull requests. Default: true.
//   - include_forks, include_archived: "true" lists forks and archived
//     repositories as resources. Default: false.
//   - base_url: API root for GitHub Enterprise Server.
package github
