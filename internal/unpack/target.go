package unpack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// createFile creates name in dst with the content of src and the provided
// mode. The directory for the file is created with cfg.CustomCreateDirMode()
// if it does not exist. If the path contains path traversal or a symlink, the
// function returns an error. If the file already exists and overwrite is
// disabled, [ErrFileExists] is returned. The size of the file is capped at
// maxSize, a maxSize < 0 does not limit the file size. The function returns
// the number of bytes written.
func createFile(dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	// check if a name is provided
	if len(name) == 0 {
		return 0, fmt.Errorf("cannot create file without name")
	}

	// adjust path to be os specific
	parts := strings.Split(name, "/")
	name = filepath.Join(parts...)

	// ensure the directory exists and is safe to write to
	if err := createDir(dst, filepath.Dir(name), cfg.CustomCreateDirMode(), cfg); err != nil {
		return 0, fmt.Errorf("cannot create directory: %w", err)
	}

	// ensure that if the file exists that it is not a symlink
	if err := securityCheck(dst, name, cfg); err != nil {
		return 0, fmt.Errorf("security check path failed: %w", err)
	}
	path := filepath.Join(dst, name)

	// check for file existence and if it should be overwritten
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		// something wrong with path
		if err != nil {
			return 0, fmt.Errorf("invalid path: %w", err)
		}

		// check for overwrite
		if !cfg.Overwrite() {
			return 0, ErrFileExists
		}
	}

	// create dst file
	dstFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		dstFile.Close()
	}()

	// write data to file, capped at maxSize
	writer := limitWriter(dstFile, maxSize)
	n, err := io.Copy(writer, src)
	if errors.Is(err, io.ErrShortWrite) {
		return n, ErrMaxExtractionSizeExceeded
	}
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// createDir creates name in dst with the provided mode. If dst does not
// exist and cfg.CreateDestination() is true, dst is created with
// cfg.CustomCreateDirMode(). If the path contains path traversal or a
// symlink, the function returns an error.
func createDir(dst string, name string, mode fs.FileMode, cfg *Config) error {
	// check if dst exists
	if len(dst) > 0 {
		if _, err := os.Lstat(dst); os.IsNotExist(err) {
			if cfg.CreateDestination() {
				if err := os.MkdirAll(dst, cfg.CustomCreateDirMode().Perm()); err != nil {
					return fmt.Errorf("failed to create destination directory: %w", err)
				}
				cfg.Logger().Info("created destination directory", "path", dst)
			} else {
				return fmt.Errorf("destination does not exist")
			}
		}
	}

	// no action needed
	if name == "." {
		return nil
	}

	// perform security check to ensure that the path is safe to write to
	if err := securityCheck(dst, name, cfg); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}

	// combine the path
	parts := strings.Split(name, "/")
	path := filepath.Join(dst, filepath.Join(parts...))
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return nil
}

// createSymlink creates in dst a symlink name with destination linkTarget.
// Symlink extraction can be denied with cfg.DenySymlinkExtraction(), absolute
// link targets are rejected and relative link targets must stay below dst.
func createSymlink(dst string, name string, linkTarget string, cfg *Config) error {
	// check if symlink extraction is denied
	if cfg.DenySymlinkExtraction() {
		return unsupportedFile(name)
	}

	// check if a name is provided
	if len(name) == 0 {
		return fmt.Errorf("empty name")
	}

	// check if link target is absolute path
	if filepath.IsAbs(linkTarget) {
		// continue on error?
		if cfg.ContinueOnError() {
			cfg.Logger().Info("skip link target with absolute path", "link target", linkTarget)
			return nil
		}

		return fmt.Errorf("symlink with absolute path as target: %s", linkTarget)
	}

	// convert name to platform specific path
	parts := strings.Split(name, "/")
	name = filepath.Join(parts...)

	// get link directory
	linkDirectory := filepath.Dir(name)

	// create target dir && check for traversal in file name
	if err := createDir(dst, linkDirectory, cfg.CustomCreateDirMode(), cfg); err != nil {
		return fmt.Errorf("cannot create directory for symlink: %w", err)
	}

	// check link target for traversal
	targetCleaned := filepath.Join(linkDirectory, linkTarget)
	if err := securityCheck(dst, targetCleaned, cfg); err != nil {
		return fmt.Errorf("symlink target security check path failed: %w", err)
	}

	path := filepath.Join(dst, name)

	// check for file existence and if it should be overwritten
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		if !cfg.Overwrite() {
			return ErrFileExists
		}

		// delete existing link
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to overwrite file: %w", err)
		}
	}

	// create link
	if err := os.Symlink(linkTarget, path); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	return nil
}

// securityCheck checks if path stays below dst and contains no symlink.
// [ErrPathTraversal] is returned if the path escapes dst, e.g., by starting
// with "..". An error is returned as well if a path element is a symlink,
// which would allow writes outside of dst through a prepared link.
func securityCheck(dst string, path string, cfg *Config) error {
	// check if dst is empty, then path should not be an absolute path
	if len(dst) == 0 {
		if filepath.IsAbs(path) {
			return fmt.Errorf("absolute path detected")
		}
	}

	// clean the path
	parts := strings.Split(path, "/")
	path = filepath.Join(parts...)

	// get relative path from base to new target
	rel, err := filepath.Rel(dst, filepath.Join(dst, path))
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}
	// check if the relative path is local
	if !filepath.IsLocal(rel) {
		return ErrPathTraversal
	}

	// check each dir in path
	targetPathElements := strings.Split(path, string(os.PathSeparator))
	for i := 0; i < len(targetPathElements); i++ {

		// assemble path
		subDirs := filepath.Join(targetPathElements[0 : i+1]...)
		checkDir := filepath.Join(dst, subDirs)

		// check if its a proper path
		if len(checkDir) == 0 {
			continue
		}

		if checkDir == "." {
			continue
		}

		// perform check if its a proper dir
		if _, err := os.Lstat(checkDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("invalid path: %w", err)
			}
		}

		// check for symlink
		isSymlink, err := isSymlink(checkDir)
		if err != nil {
			return fmt.Errorf("failed to check symlink: %w", err)
		}
		if isSymlink {
			return fmt.Errorf("symlink in path: %s", subDirs)
		}
	}

	return nil
}

// isSymlink checks if path is a symlink
func isSymlink(path string) (bool, error) {
	// ignore empty checks
	if len(path) == 0 {
		return false, fmt.Errorf("empty path")
	}

	// don't check cwd
	if path == "." {
		return false, fmt.Errorf("cwd")
	}

	// perform check
	if stat, err := os.Lstat(path); !os.IsNotExist(err) {
		// check if error occurred --> not a symlink
		if err != nil {
			return false, fmt.Errorf("failed to check path: %w", err)
		}

		// check if we got stats
		if stat == nil {
			return false, fmt.Errorf("failed to get stats")
		}

		// check if symlink
		if stat.Mode()&os.ModeSymlink == os.ModeSymlink {
			return true, nil
		}
	}

	// no symlink found within path
	return false, nil
}
