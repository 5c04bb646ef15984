package page

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// applyWWWOwnership recursively chowns path to wwwUser:wwwGroup,
// mirroring set_public_page_permissions. It runs once, as the last step
// of PromotePublic, handing the D/public tree back to the web server's
// identity so it can serve files the RPC server just wrote as a
// different user; no other operation that writes under D/public calls
// it. A
// blank user or group is a deliberate no-op — deployments that never
// set FBKSD_WWW_USER/FBKSD_WWW_GROUP serve the page as whatever user
// runs the RPC server.
func applyWWWOwnership(path, wwwUser, wwwGroup string) error {
	if wwwUser == "" || wwwGroup == "" {
		return nil
	}

	u, err := user.Lookup(wwwUser)
	if err != nil {
		return fmt.Errorf("page: lookup www user %q: %w", wwwUser, err)
	}
	g, err := user.LookupGroup(wwwGroup)
	if err != nil {
		return fmt.Errorf("page: lookup www group %q: %w", wwwGroup, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("page: parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return fmt.Errorf("page: parse gid %q: %w", g.Gid, err)
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chown(p, uid, gid)
	})
}
