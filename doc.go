// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

/*
Package fta implements the analysis core of a fault-tree engine: given a
Boolean fault tree whose leaves are basic events, each with a failure
probability, and whose inner vertices are logic gates, it computes the minimal
cut sets of the top event, its total probability, and importance factors for
every basic event.

Basics

A model (see the mef subpackage) is compiled into an indexed propositional DAG,
the Graph, where basic events become variables with indices in [1..n] and gates
become indexed vertices with signed children (a negative index denotes the
complement of the child). A preprocessing pipeline rewrites the graph in place:
constants are propagated, gates are normalized to negation normal form,
same-type gates are coalesced, absorbed terms are removed, and independent
modules are detected. The result is a graph with only AND and OR gates where
complements, if any, appear only on variables.

Minimal cut sets are generated with the MOCUS algorithm over a Zero-suppressed
Binary Decision Diagram (ZBDD) that represents families of literal sets
compactly. Gates are expanded module by module until only basic-event literals
remain, then the family is minimized. Probabilities are computed exactly on a
BDD sharing the same variable ordering, or with the rare-event and MCUB
approximations when requested.

Automatic memory management

The library is written in pure Go. ZBDD and BDD vertices live in per-analysis
arenas with a unique table; garbage collection of unreferenced vertices runs
whenever an arena has no free slot left, which can happen in the middle of an
operation. Retained roots and the intermediate results that operations push on
the reference stack protect their subgraphs from it. Nothing is shared between two analyses, which makes it safe to run
several of them in parallel (see AnalyzeAll).
*/
package fta
