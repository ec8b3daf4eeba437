// Package clientip extracts the client address from a request that may have
// passed through proxies or a CDN.
//
// Headers are checked in this order, and the first valid address wins:
//
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For, leftmost entry
//  4. X-Real-IP
//  5. RemoteAddr
//
// These headers are client controlled unless a trusted proxy overwrites them.
// Use the result for logging and rate-limit keys, not for authorization.
package clientip
