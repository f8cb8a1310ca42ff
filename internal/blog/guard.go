package blog

// GuardMutation decides whether requester may mutate a resource owned by
// authorID. Unauthorized actors are bounced back to the detail view of the
// resource's parent post instead of receiving an error page, so the returned
// error is either nil (allow), ErrLoginRequired, or a NotOwnerError carrying
// the redirect target. The check happens once, at dispatch time; each request
// is independently authorized.
func GuardMutation(authorID string, requester *User, postID string) error {
	if requester == nil {
		return ErrLoginRequired
	}
	if requester.ID != authorID {
		return &NotOwnerError{PostID: postID}
	}
	return nil
}
