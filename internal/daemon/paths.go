package daemon

import "path/filepath"

// Runtime files of a running server, all under <home>/protected.
func protectedDir(home string) string { return filepath.Join(home, "protected") }

func pidPath(home string) string  { return filepath.Join(protectedDir(home), "daemon.pid") }
func lockPath(home string) string { return filepath.Join(protectedDir(home), "daemon.lock") }
func addrPath(home string) string { return filepath.Join(protectedDir(home), "daemon.addr") }

// LogPath is where a background server writes its log.
func LogPath(home string) string { return filepath.Join(protectedDir(home), "daemon.log") }
