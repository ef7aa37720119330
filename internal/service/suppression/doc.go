// Package suppression manages the platform-wide suppression list: addresses
// that must never receive mail, regardless of their contact's subscribed
// flag. The list is append-mostly and reason-coded (unsubscribe, hard
// bounce, complaint, manual).
package suppression
