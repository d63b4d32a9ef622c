// Package fileutil writes files so that readers never observe a partial write.
package fileutil
