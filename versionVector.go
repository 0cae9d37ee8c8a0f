package eventcore

// MasterBranch is the default branch every aggregate starts on.
const MasterBranch = "master"

// VersionVector is a branch-keyed logical clock used to detect concurrent
// writes to the same aggregate without distributed locks. A branch value never
// decreases once observed.
type VersionVector struct {
	Versions map[string]uint64 `json:"versions"`
}

// NewVersionVector returns a vector with the master branch at 0.
func NewVersionVector() VersionVector {
	return VersionVector{Versions: map[string]uint64{MasterBranch: 0}}
}

// IsEmpty reports whether the vector carries no branches at all.
func (v VersionVector) IsEmpty() bool {
	return len(v.Versions) == 0
}

// Get returns the value for a branch, defaulting absent branches to 0.
func (v VersionVector) Get(branch string) uint64 {
	if v.Versions == nil {
		return 0
	}
	return v.Versions[branch]
}

// Clone returns an independent copy of the vector.
func (v VersionVector) Clone() VersionVector {
	clone := VersionVector{Versions: make(map[string]uint64, len(v.Versions))}
	for branch, version := range v.Versions {
		clone.Versions[branch] = version
	}
	return clone
}

// Increment advances a branch by one. An absent branch is inserted at 0 first,
// so its first increment yields 1. An empty branch name means master.
func (v *VersionVector) Increment(branch string) {
	if branch == "" {
		branch = MasterBranch
	}
	if v.Versions == nil {
		v.Versions = make(map[string]uint64)
	}
	v.Versions[branch]++
}

// Merge folds another vector into this one, keeping the per-branch maximum.
// Merging the same vector repeatedly is idempotent.
func (v *VersionVector) Merge(other VersionVector) {
	if len(other.Versions) == 0 {
		return
	}
	if v.Versions == nil {
		v.Versions = make(map[string]uint64)
	}
	for branch, version := range other.Versions {
		if version > v.Versions[branch] {
			v.Versions[branch] = version
		}
	}
}

// CompatibleWith reports whether other is at least as advanced as this vector
// for every branch this vector has seen. It is the stored-side check run
// before accepting a write: the caller's vector must dominate the stored one.
//
// An empty or nil other is trivially compatible and is treated as "no known
// prior state"; callers that omit their vector opt out of the concurrency
// check entirely.
func (v VersionVector) CompatibleWith(other VersionVector) bool {
	if other.IsEmpty() {
		return true
	}
	for branch, version := range v.Versions {
		if other.Get(branch) < version {
			return false
		}
	}
	return true
}

// Equal reports whether two vectors agree on every branch, treating absent
// branches as 0.
func (v VersionVector) Equal(other VersionVector) bool {
	for branch, version := range v.Versions {
		if other.Get(branch) != version {
			return false
		}
	}
	for branch, version := range other.Versions {
		if v.Get(branch) != version {
			return false
		}
	}
	return true
}
