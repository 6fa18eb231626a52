//go:build !unix

package treestore

import "io/fs"

func ownerOf(info fs.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
