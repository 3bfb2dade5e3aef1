// Package model defines the entities of an inkwell library.
//
// A Book owns every Character, Location, PlotEvent, Chapter, Theme and Prop
// that references it, plus one WritingLog row per calendar day on which
// words were added. Chapters and plot events carry an Order field that is
// always a dense 1..N permutation within their book.
package model
