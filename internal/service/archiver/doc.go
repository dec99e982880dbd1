// Package archiver compresses the staging directory into a self-extracting
// archive with the external 7-Zip program.
package archiver
