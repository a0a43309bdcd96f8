// Package converter turns a repository URL into a published PDF artifact.
//
// A conversion is admitted by the gate, resolves a workspace, sweeps expired
// scratch directories and artifacts, clones into its own scratch directory,
// renders the tree and publishes the result with an atomic rename. Every exit
// path releases the admission slot and removes the scratch directory.
//
// Layout under the workspace root:
//
//	<root>/operations/<id>/repo     clone destination
//	<root>/operations/<id>/output   staging document
//	<root>/pdfs/<name>-<id>.pdf     published artifacts
package converter
