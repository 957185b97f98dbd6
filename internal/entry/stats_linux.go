package entry

import (
	"syscall"
	"time"
)

func fillSys(s *Stats, sys any) {
	st, ok := sys.(*syscall.Stat_t)
	if !ok {
		return
	}
	s.Dev = uint64(st.Dev)
	s.Ino = st.Ino
	s.Nlink = uint64(st.Nlink)
	s.Uid = st.Uid
	s.Gid = st.Gid
	s.Rdev = uint64(st.Rdev)
	s.Blksize = int64(st.Blksize)
	s.Blocks = st.Blocks
	s.AccessTime = time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	s.ChangeTime = time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
}
