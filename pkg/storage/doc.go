// Package storage keeps uploaded dataset images on disk, one directory per
// split (train, valid, test), and derives the dataset summary from them.
//
// Files are written to a temporary name and renamed into place, so Info
// never counts a partial upload.
package storage
