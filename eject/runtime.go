package eject

// The constants below are the bundled bin/ helpers spec.md §4.5 describes.
// They are bundled, not generated from forge's own data model: like the
// `esy-build`/`esy-shell`/`esy-clean` shell runtime fragment they dispatch
// into, they are an opaque, external collaborator (spec.md §1) that forge
// only needs to place on disk at eject time, verbatim.

// RealpathC is bin/realpath.c: a small C wrapper around the system
// realpath(3), compiled into bin/realpath by the emitted Makefile's esy-root
// target. The emitted Makefile does not call it: ESY_EJECT__ROOT is set to
// $(CURDIR) directly. Written as conforming C (int main returning int),
// fixing spec.md §9's "non-int main" note about the original helper.
const RealpathC = `#include <stdio.h>
#include <stdlib.h>
#include <limits.h>

int main(int argc, char **argv) {
	if (argc != 2) {
		fprintf(stderr, "usage: %s <path>\n", argv[0]);
		return 1;
	}

	char resolved[PATH_MAX];

	if (realpath(argv[1], resolved) == NULL) {
		perror("realpath");
		return 1;
	}

	printf("%s\n", resolved);
	return 0;
}
`

// RuntimeSh is bin/runtime.sh: the opaque shell core each per-build
// Makefile target sources, dispatching on esy_build__type/esy_build__key
// to run, shell into, or clean a single build's directory.
const RuntimeSh = `#!/bin/sh
# runtime.sh: esy-build / esy-shell / esy-clean dispatch core.
#
# Invoked by each per-build "<name>.build" / "<name>.shell" / "<name>.clean"
# Make target after that target's shell_env_for__<name> define has set the
# esy_build__* family of variables (eject, type, key, command, source_root,
# install).
set -e

esy_build() {
	mkdir -p "$esy_build__eject/_build"

	if [ "$esy_build__type" = "in-source" ]; then
		rm -rf "$esy_build__eject/_build/$esy_build__key"
		mkdir -p "$esy_build__eject/_build/$esy_build__key"
		cp -a "$esy_build__source_root/." "$esy_build__eject/_build/$esy_build__key/"
		cd "$esy_build__eject/_build/$esy_build__key"
	else
		cd "$esy_build__source_root"
	fi

	sh -c "$esy_build__command"
}

esy_shell() {
	if [ "$esy_build__type" = "in-source" ]; then
		cd "$esy_build__eject/_build/$esy_build__key"
	else
		cd "$esy_build__source_root"
	fi

	exec "${SHELL:-/bin/sh}"
}

esy_clean() {
	rm -rf "$esy_build__eject/_build/$esy_build__key"
}

case "$1" in
	build) esy_build ;;
	shell) esy_shell ;;
	clean) esy_clean ;;
	*)
		echo "usage: runtime.sh {build|shell|clean}" >&2
		exit 1
		;;
esac
`

// RenderEnv is bin/render-env: sed-substitutes the four placeholders into
// an input .in file.
const RenderEnv = `#!/bin/sh
# render-env <input.in> <output>
#
# Substitutes $ESY_EJECT__STORE, $ESY_EJECT__SANDBOX, $ESY_EJECT__ROOT,
# $TMPDIR and $TMPDIR_GLOBAL into the input file.
set -e

in="$1"
out="$2"

sed \
	-e "s#\$ESY_EJECT__STORE#${ESY_EJECT__STORE}#g" \
	-e "s#\$ESY_EJECT__SANDBOX#${ESY_EJECT__SANDBOX}#g" \
	-e "s#\$ESY_EJECT__ROOT#${ESY_EJECT__ROOT}#g" \
	-e "s#\$TMPDIR_GLOBAL#${TMPDIR_GLOBAL:-${TMPDIR:-/tmp}}#g" \
	-e "s#\$TMPDIR#${TMPDIR:-/tmp}#g" \
	"$in" > "$out"
`

// ReplaceString is bin/replace-string: the deferred, Make-time form of
// spec.md §4.4 step 8, rewriting all occurrences of one byte string to
// another in a file while preserving its mode.
const ReplaceString = `#!/bin/sh
# replace-string <file> <needle> <replacement>
set -e

file="$1"
needle="$2"
replacement="$3"

mode=$(stat -c %a "$file" 2>/dev/null || stat -f %Lp "$file")
tmp=$(mktemp "$(dirname "$file")/.replace-string.XXXXXX")

sed "s#${needle}#${replacement}#g" "$file" > "$tmp"
chmod "$mode" "$tmp"
mv "$tmp" "$file"
`
