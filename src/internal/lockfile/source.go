package lockfile

import (
	"github.com/pkgctl/pkgctl/src/internal/distdb"
	"github.com/pkgctl/pkgctl/src/internal/resolver"
)

func sourceFromDistribution(pkg resolver.Resolved) LockedSource {
	switch pkg.Dist.Kind {
	case distdb.KindRegistryWheel, distdb.KindRegistrySdist:
		return LockedSource{Kind: "registry"}
	case distdb.KindDirectURLWheel, distdb.KindDirectURLSdist:
		return LockedSource{Kind: "direct", DirectURL: pkg.Dist.URL}
	case distdb.KindGit:
		return LockedSource{Kind: "git", GitURL: pkg.Dist.GitURL, GitRef: pkg.Dist.GitRef}
	case distdb.KindPath:
		return LockedSource{Kind: "path", Path: pkg.Dist.LocalDir, Editable: pkg.Dist.Editable}
	default:
		return LockedSource{Kind: "unknown"}
	}
}

func fileFromDist(pkg resolver.Resolved) LockedFile {
	return LockedFile{
		Filename: filenameFromURL(pkg.Dist.URL),
		URL:      pkg.Dist.URL,
		Hash:     hashField(pkg.Dist.SHA256),
	}
}
