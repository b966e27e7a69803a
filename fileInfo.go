package main

import (
	"path/filepath"
	"strings"
)

// FileInfo holds derived, immutable facts about a file path. It is computed
// once per path and compared/displayed as a value.
type FileInfo struct {
	FullPath                       string
	FullPathForPOSIX               string
	FileNameWithExtension          string
	FileNameWithoutExtension       string
	FileExtensionWithoutLeadingDot string
	DirectoryName                  string
	DirectoryPath                  string
}

func NewFileInfo(fullPath string) FileInfo {
	internal := NormalizePathForInternal(fullPath)
	posix := PosixPath(internal)
	base := filepath.Base(DenormalizePathForOS(internal))
	ext := filepath.Ext(base)
	dirPath := NormalizePathForInternal(filepath.Dir(DenormalizePathForOS(internal)))
	return FileInfo{
		FullPath:                       internal,
		FullPathForPOSIX:               posix,
		FileNameWithExtension:          base,
		FileNameWithoutExtension:       strings.TrimSuffix(base, ext),
		FileExtensionWithoutLeadingDot: strings.TrimPrefix(ext, "."),
		DirectoryName:                  filepath.Base(DenormalizePathForOS(dirPath)),
		DirectoryPath:                  dirPath,
	}
}

// GetRelativePath returns the specifier-style path from rootPath to this
// file, always prefixed with "./" when it does not climb upward.
func (f FileInfo) GetRelativePath(rootPath string) string {
	return RelativeSpecifier(rootPath, f.FullPath)
}

// IsIndexFile reports whether the file is a barrel (index) file.
func (f FileInfo) IsIndexFile() bool {
	return f.FileNameWithoutExtension == "index"
}
